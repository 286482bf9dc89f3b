package auth

import (
	"context"
	"sync"

	"cityfix/core/store"
	"cityfix/core/utils"
	"github.com/robfig/cron/v3"
)

// SessionJanitor drops expired sessions on a cron schedule.
type SessionJanitor struct {
	store  store.SessionStore
	spec   string
	logger *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewSessionJanitor(sessions store.SessionStore, spec string, logger *utils.Logger) *SessionJanitor {
	if spec == "" {
		spec = "@every 10m"
	}
	return &SessionJanitor{store: sessions, spec: spec, logger: logger}
}

func (j *SessionJanitor) StartWithContext(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(j.spec, func() { j.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	j.running = true
	return nil
}

func (j *SessionJanitor) StopWithContext(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.running = false
	j.mu.Unlock()
	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *SessionJanitor) RunOnce(ctx context.Context) {
	n, err := j.store.PurgeExpired(ctx, utils.NowUTC())
	if j.logger == nil {
		return
	}
	if err != nil {
		j.logger.Errorf("session purge: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("session purge: removed %d expired sessions", n)
	}
}
