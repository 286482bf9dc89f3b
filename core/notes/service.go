// Package notes is the staff-only annotation log on a report. Citizens,
// external maintainers and administrators never read or write it.
package notes

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

type Service struct {
	cfg     *config.AppConfig
	engine  *reports.Service
	notes   store.NotesStore
	metrics *metrics.Metrics
	logger  *utils.Logger
}

func NewService(cfg *config.AppConfig, engine *reports.Service, notes store.NotesStore, m *metrics.Metrics, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{cfg: cfg, engine: engine, notes: notes, metrics: m, logger: logger}
}

// authorize rejects non-staff tiers before touching the report.
func (s *Service) authorize(ctx context.Context, actor *roles.Actor, reportID int64) (*store.Report, error) {
	tier := roles.TierOf(actor)
	if tier != roles.TierPublicRelations && tier != roles.TierTechnical {
		return nil, apperr.NewAuthorizationError("notes.forbidden", "internal notes are staff only")
	}
	r, err := s.engine.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if tier == roles.TierTechnical && !reports.InHandlingChain(actor, r) {
		return nil, apperr.NewAuthorizationError("notes.forbidden", "report is outside your handling chain")
	}
	return r, nil
}

func (s *Service) Add(ctx context.Context, actor *roles.Actor, reportID int64, content string) (*store.InternalNote, error) {
	r, err := s.authorize(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.NewValidationError("notes.contentRequired", "note is empty")
	}
	limit := 2000
	if s.cfg != nil && s.cfg.Reports.MessageMaxLength > 0 {
		limit = s.cfg.Reports.MessageMaxLength
	}
	if utf8.RuneCountInString(content) > limit {
		return nil, apperr.NewValidationError("notes.tooLong", "note exceeds the maximum length")
	}
	note := &store.InternalNote{ReportID: r.ID, AuthorID: actor.UserID, AuthorRole: actor.RoleName(), Content: content}
	if err := s.notes.AppendNote(ctx, note); err != nil {
		return nil, err
	}
	s.metrics.ThreadAppended("notes")
	return note, nil
}

func (s *Service) List(ctx context.Context, actor *roles.Actor, reportID, afterID int64) ([]store.InternalNote, error) {
	r, err := s.authorize(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	if afterID < 0 {
		afterID = 0
	}
	list, err := s.notes.ListNotes(ctx, r.ID, afterID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.InternalNote{}
	}
	return list, nil
}
