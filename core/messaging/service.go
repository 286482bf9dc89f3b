// Package messaging is the per-report thread between the citizen who filed a
// report and whoever currently handles it.
package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"cityfix/config"
	"cityfix/core/apperr"
	"cityfix/core/metrics"
	"cityfix/core/reports"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

const defaultMaxLength = 2000

type Service struct {
	cfg      *config.AppConfig
	engine   *reports.Service
	messages store.MessagesStore
	metrics  *metrics.Metrics
	logger   *utils.Logger
}

func NewService(cfg *config.AppConfig, engine *reports.Service, messages store.MessagesStore, m *metrics.Metrics, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{cfg: cfg, engine: engine, messages: messages, metrics: m, logger: logger}
}

func (s *Service) maxLength() int {
	if s.cfg != nil && s.cfg.Reports.MessageMaxLength > 0 {
		return s.cfg.Reports.MessageMaxLength
	}
	return defaultMaxLength
}

// authorize admits the report creator and the current assignment holder.
func (s *Service) authorize(ctx context.Context, actor *roles.Actor, reportID int64) (*store.Report, error) {
	tier := roles.TierOf(actor)
	if tier != roles.TierCitizen && tier != roles.TierTechnical && tier != roles.TierExternalMaintainer {
		return nil, apperr.NewAuthorizationError("messages.forbidden", "role cannot use report messages")
	}
	r, err := s.engine.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if tier == roles.TierCitizen {
		if r.CreatedBy != actor.UserID {
			return nil, apperr.NewAuthorizationError("messages.forbidden", "only the reporter may use this thread")
		}
		return r, nil
	}
	holder, err := s.engine.IsCurrentHolder(ctx, actor, r)
	if err != nil {
		return nil, err
	}
	if !holder {
		return nil, apperr.NewAuthorizationError("messages.forbidden", "report is not handled by you")
	}
	return r, nil
}

func (s *Service) Post(ctx context.Context, actor *roles.Actor, reportID int64, content string) (*store.Message, error) {
	r, err := s.authorize(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.NewValidationError("messages.contentRequired", "message is empty")
	}
	if utf8.RuneCountInString(content) > s.maxLength() {
		return nil, apperr.NewValidationError("messages.tooLong", "message exceeds the maximum length")
	}
	msg := &store.Message{ReportID: r.ID, SenderID: actor.UserID, SenderRole: actor.RoleName(), Content: content}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.ThreadAppended("messages")
	s.logger.WithUser(actor.Username).Debugf("message %d on report %d", msg.ID, r.ID)
	return msg, nil
}

// List returns messages with id greater than afterID, oldest first. Polling
// clients pass the last id they have seen.
func (s *Service) List(ctx context.Context, actor *roles.Actor, reportID, afterID int64) ([]store.Message, error) {
	r, err := s.authorize(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	if afterID < 0 {
		afterID = 0
	}
	list, err := s.messages.ListMessages(ctx, r.ID, afterID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.Message{}
	}
	if r.IsAnonymous && actor.UserID != r.CreatedBy {
		for i := range list {
			if list[i].SenderID == r.CreatedBy {
				list[i].SenderID = 0
			}
		}
	}
	return list, nil
}
