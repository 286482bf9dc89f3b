package utils

import (
	"strconv"
	"strings"
	"time"
)

func NowUTC() time.Time {
	return time.Now().UTC()
}

func ParseInt64(raw string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
