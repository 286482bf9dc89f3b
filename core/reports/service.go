// Package reports is the report workflow engine: creation, visibility and the
// status state machine with its assignment side effects.
package reports

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"cityfix/config"
	"cityfix/core/apperr"
	"cityfix/core/assignment"
	"cityfix/core/metrics"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
)

type Service struct {
	cfg      *config.AppConfig
	reports  store.ReportsStore
	resolver *assignment.Resolver
	audits   store.AuditStore
	metrics  *metrics.Metrics
	logger   *utils.Logger
}

func NewService(cfg *config.AppConfig, reports store.ReportsStore, resolver *assignment.Resolver, audits store.AuditStore, m *metrics.Metrics, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{cfg: cfg, reports: reports, resolver: resolver, audits: audits, metrics: m, logger: logger}
}

type PhotoInput struct {
	URL      string
	Filename string
}

type CreateInput struct {
	Title       string
	Description string
	Category    string
	Latitude    float64
	Longitude   float64
	IsAnonymous bool
	Photos      []PhotoInput
}

type ReportList struct {
	Reports []ReportView `json:"reports"`
	Pending []ReportView `json:"pending,omitempty"`
}

type ReportDetail struct {
	ReportView
	Photos []store.ReportPhoto `json:"photos"`
}

// photoBounds returns the photo count range for new reports. A zero upper
// bound means no ceiling.
func (s *Service) photoBounds() (int, int) {
	lo, hi := 1, 0
	if s.cfg != nil {
		if s.cfg.Reports.MinPhotos > 0 {
			lo = s.cfg.Reports.MinPhotos
		}
		if s.cfg.Reports.MaxPhotos > 0 {
			hi = max(s.cfg.Reports.MaxPhotos, lo)
		}
	}
	return lo, hi
}

func (s *Service) listLimit() int {
	if s.cfg != nil && s.cfg.Reports.ListLimit > 0 {
		return s.cfg.Reports.ListLimit
	}
	return 500
}

func (s *Service) CreateReport(ctx context.Context, actor *roles.Actor, in CreateInput) (*ReportView, error) {
	if roles.TierOf(actor) != roles.TierCitizen {
		return nil, s.refuse("create", authorizationError("reports.forbidden", "only citizens file reports"))
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, s.refuse("create", validationError("reports.titleRequired", "title is required"))
	}
	category, ok := store.ParseCategory(in.Category)
	if !ok {
		return nil, s.refuse("create", validationError("reports.invalidCategory", "unknown category %q", in.Category))
	}
	if !validCoordinates(in.Latitude, in.Longitude) {
		return nil, s.refuse("create", validationError("reports.invalidLocation", "coordinates out of range"))
	}
	minPhotos, maxPhotos := s.photoBounds()
	if len(in.Photos) < minPhotos {
		return nil, s.refuse("create", validationError("reports.photosRequired", "at least %d photos required", minPhotos))
	}
	if maxPhotos > 0 && len(in.Photos) > maxPhotos {
		return nil, s.refuse("create", validationError("reports.photosCount", "at most %d photos allowed", maxPhotos))
	}
	photos := make([]store.ReportPhoto, 0, len(in.Photos))
	for _, p := range in.Photos {
		url := strings.TrimSpace(p.URL)
		if url == "" {
			return nil, s.refuse("create", validationError("reports.photoURLRequired", "photo url is required"))
		}
		name := strings.TrimSpace(p.Filename)
		if name == "" {
			name = url[strings.LastIndex(url, "/")+1:]
		}
		photos = append(photos, store.ReportPhoto{URL: url, Filename: name})
	}
	report := &store.Report{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Status:      store.StatusPendingApproval,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		IsAnonymous: in.IsAnonymous,
		CreatedBy:   actor.UserID,
		Assignment:  store.Unassigned(),
	}
	ev := store.ReportEvent{EventType: EventCreated, ToStatus: store.StatusPendingApproval, ActorID: actor.UserID, ActorRole: actor.RoleName()}
	if _, err := s.reports.CreateReport(ctx, report, photos, ev); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "reports.create", fmt.Sprintf("id=%d category=%s", report.ID, category))
	s.metrics.TransitionCommitted(EventCreated, "", string(store.StatusPendingApproval))
	view := viewFor(actor, *report)
	return &view, nil
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func (s *Service) ListReports(ctx context.Context, actor *roles.Actor) (*ReportList, error) {
	limit := s.listLimit()
	switch roles.TierOf(actor) {
	case roles.TierCitizen:
		list, err := s.reports.ListReports(ctx, store.ReportFilter{VisibleToUserID: actor.UserID, Limit: limit})
		if err != nil {
			return nil, err
		}
		return &ReportList{Reports: viewsFor(actor, list)}, nil
	case roles.TierPublicRelations:
		pending, err := s.reports.ListReports(ctx, store.ReportFilter{Status: store.StatusPendingApproval, Limit: limit})
		if err != nil {
			return nil, err
		}
		others, err := s.reports.ListReports(ctx, store.ReportFilter{ExcludeStatus: store.StatusPendingApproval, Limit: limit})
		if err != nil {
			return nil, err
		}
		return &ReportList{Reports: viewsFor(actor, others), Pending: viewsFor(actor, pending)}, nil
	case roles.TierTechnical:
		list, err := s.reports.ListReports(ctx, store.ReportFilter{TechnicianID: actor.UserID, Limit: limit})
		if err != nil {
			return nil, err
		}
		return &ReportList{Reports: viewsFor(actor, list)}, nil
	case roles.TierExternalMaintainer:
		if actor.CompanyID == nil {
			return &ReportList{Reports: []ReportView{}}, nil
		}
		list, err := s.reports.ListReports(ctx, store.ReportFilter{MaintainerID: actor.UserID, MaintainerOrg: *actor.CompanyID, Limit: limit})
		if err != nil {
			return nil, err
		}
		return &ReportList{Reports: viewsFor(actor, list)}, nil
	}
	return nil, authorizationError("reports.forbidden", "role %s cannot list reports", actor.RoleName())
}

// Load fetches a report or fails with a not-found error.
func (s *Service) Load(ctx context.Context, id int64) (*store.Report, error) {
	if id <= 0 {
		return nil, notFoundError("reports.notFound", "report %d not found", id)
	}
	r, err := s.reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFoundError("reports.notFound", "report %d not found", id)
	}
	return r, nil
}

func (s *Service) loadVisible(ctx context.Context, actor *roles.Actor, id int64) (*store.Report, error) {
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, actor, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, authorizationError("reports.forbidden", "report %d not visible", id)
	}
	return r, nil
}

func (s *Service) GetReport(ctx context.Context, actor *roles.Actor, id int64) (*ReportDetail, error) {
	r, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	photos, err := s.reports.ListReportPhotos(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []store.ReportPhoto{}
	}
	return &ReportDetail{ReportView: viewFor(actor, *r), Photos: photos}, nil
}

func (s *Service) ListEvents(ctx context.Context, actor *roles.Actor, id int64) ([]store.ReportEvent, error) {
	r, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	events, err := s.reports.ListReportEvents(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if r.IsAnonymous && actor.UserID != r.CreatedBy {
		for i := range events {
			if events[i].ActorID == r.CreatedBy {
				events[i].ActorID = 0
			}
		}
	}
	if events == nil {
		events = []store.ReportEvent{}
	}
	return events, nil
}

// Approve moves a pending report to ASSIGNED with technicianID as holder.
func (s *Service) Approve(ctx context.Context, actor *roles.Actor, id, technicianID int64) (*ReportView, error) {
	if roles.TierOf(actor) != roles.TierPublicRelations {
		return nil, s.refuse("approve", authorizationError("reports.forbidden", "only public relations approve reports"))
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, s.refuse("approve", err)
	}
	if r.Status != store.StatusPendingApproval {
		return nil, s.refuse("approve", invalidTransitionError("reports.invalidTransition", "report %d is %s, not pending", id, r.Status))
	}
	if technicianID <= 0 {
		return nil, s.refuse("approve", validationError("reports.technicianRequired", "technician is required"))
	}
	eligible, err := s.resolver.TechnicianEligible(ctx, r.Category, technicianID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, s.refuse("approve", validationError("reports.technicianIneligible", "user %d cannot handle %s", technicianID, r.Category))
	}
	return s.commit(ctx, actor, "approve", r, store.ReportTransition{
		NewStatus:  store.StatusAssigned,
		Assignment: store.ToTechnician(technicianID),
		Event: store.ReportEvent{
			EventType: EventApproved,
			Details:   fmt.Sprintf("technician=%d", technicianID),
		},
	})
}

func (s *Service) Reject(ctx context.Context, actor *roles.Actor, id int64, reason string) (*ReportView, error) {
	if roles.TierOf(actor) != roles.TierPublicRelations {
		return nil, s.refuse("reject", authorizationError("reports.forbidden", "only public relations reject reports"))
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, s.refuse("reject", err)
	}
	if r.Status != store.StatusPendingApproval {
		return nil, s.refuse("reject", invalidTransitionError("reports.invalidTransition", "report %d is %s, not pending", id, r.Status))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.refuse("reject", validationError("reports.rejectReasonRequired", "rejection reason is required"))
	}
	return s.commit(ctx, actor, "reject", r, store.ReportTransition{
		NewStatus:       store.StatusRejected,
		Assignment:      store.Unassigned(),
		RejectionReason: reason,
		Event:           store.ReportEvent{EventType: EventRejected, Details: reason},
	})
}

// AssignToExternal forks an ASSIGNED report to a company or one of its
// maintainers. The technician assignment is replaced.
func (s *Service) AssignToExternal(ctx context.Context, actor *roles.Actor, id, companyID int64, maintainerID *int64) (*ReportView, error) {
	if roles.TierOf(actor) != roles.TierTechnical {
		return nil, s.refuse("assign_external", authorizationError("reports.forbidden", "only technical staff route reports externally"))
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, s.refuse("assign_external", err)
	}
	if !InHandlingChain(actor, r) {
		return nil, s.refuse("assign_external", authorizationError("reports.notAssignee", "report %d is not assigned to you", id))
	}
	if r.Status != store.StatusAssigned {
		return nil, s.refuse("assign_external", invalidTransitionError("reports.externalOnlyFromAssigned", "report %d is %s; external routing needs ASSIGNED", id, r.Status))
	}
	if companyID <= 0 {
		return nil, s.refuse("assign_external", validationError("reports.companyRequired", "company is required"))
	}
	target, err := s.resolver.ResolveExternal(ctx, r.Category, companyID, maintainerID)
	if err != nil {
		return nil, s.refuse("assign_external", mapResolverError(err, companyID))
	}
	officer := actor.UserID
	details := fmt.Sprintf("company=%d", companyID)
	if mid, ok := target.MaintainerID(); ok {
		details += fmt.Sprintf(" maintainer=%d", mid)
	}
	return s.commit(ctx, actor, "assign_external", r, store.ReportTransition{
		NewStatus:          store.StatusExternalAssigned,
		Assignment:         target,
		ExternalAssignedBy: &officer,
		Event:              store.ReportEvent{EventType: EventAssignedExternal, Details: details},
	})
}

func mapResolverError(err error, companyID int64) error {
	switch {
	case errors.Is(err, assignment.ErrUnknownCompany):
		return notFoundError("companies.notFound", "company %d not found", companyID)
	case errors.Is(err, assignment.ErrCategoryNotHandled):
		return validationError("reports.companyCategoryMismatch", "company %d does not handle this category", companyID)
	case errors.Is(err, assignment.ErrNoPlatformAccess):
		return validationError("reports.companyNoPlatformAccess", "company %d has no platform access", companyID)
	case errors.Is(err, assignment.ErrMaintainerNotEligible):
		return validationError("reports.maintainerIneligible", "maintainer is not an active member of company %d", companyID)
	}
	return err
}

// UpdateStatus moves a report between the work states for its current handler.
func (s *Service) UpdateStatus(ctx context.Context, actor *roles.Actor, id int64, rawStatus string) (*ReportView, error) {
	tier := roles.TierOf(actor)
	if tier != roles.TierTechnical && tier != roles.TierExternalMaintainer {
		return nil, s.refuse("status", authorizationError("reports.forbidden", "role cannot update report status"))
	}
	target, ok := store.ParseStatus(rawStatus)
	if !ok {
		return nil, s.refuse("status", validationError("reports.invalidStatus", "unknown status %q", rawStatus))
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, s.refuse("status", err)
	}
	rel, err := s.relationOf(ctx, actor, r)
	if err != nil {
		return nil, err
	}
	if rel == relNone {
		return nil, s.refuse("status", authorizationError("reports.notAssignee", "report %d is not handled by you", id))
	}
	if !containsStatus(workTargets, target) {
		return nil, s.refuse("status", invalidTransitionError("reports.invalidTransition", "status %s has a dedicated operation", target))
	}
	if r.Status == target {
		return nil, s.refuse("status", invalidTransitionError("reports.sameStatus", "report %d is already %s", id, target))
	}
	if !containsStatus(workSources[rel], r.Status) {
		return nil, s.refuse("status", invalidTransitionError("reports.invalidTransition", "%s cannot move report %d from %s", rel, id, r.Status))
	}
	return s.commit(ctx, actor, "status", r, store.ReportTransition{
		NewStatus:          target,
		Assignment:         r.Assignment,
		ExternalAssignedBy: r.ExternalAssignedBy,
		Event:              store.ReportEvent{EventType: EventStatusChanged, Details: rel.String()},
	})
}

func (s *Service) AssignableTechnicals(ctx context.Context, actor *roles.Actor, id int64) ([]store.User, error) {
	if roles.TierOf(actor) != roles.TierPublicRelations {
		return nil, authorizationError("reports.forbidden", "only public relations pick technicians")
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolver.EligibleTechnicalStaff(ctx, r.Category)
}

func (s *Service) AssignableExternals(ctx context.Context, actor *roles.Actor, id int64) ([]assignment.ExternalTarget, error) {
	if roles.TierOf(actor) != roles.TierTechnical {
		return nil, authorizationError("reports.forbidden", "only technical staff pick external handlers")
	}
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !InHandlingChain(actor, r) {
		return nil, authorizationError("reports.notAssignee", "report %d is not assigned to you", id)
	}
	return s.resolver.EligibleExternalTargets(ctx, r.Category)
}

// commit applies tr against the version of r that was checked. A concurrent
// writer that got there first turns into an invalid transition.
func (s *Service) commit(ctx context.Context, actor *roles.Actor, op string, r *store.Report, tr store.ReportTransition) (*ReportView, error) {
	if !Reachable(r.Status, tr.NewStatus) {
		return nil, s.refuse(op, invalidTransitionError("reports.invalidTransition", "%s -> %s is not a workflow edge", r.Status, tr.NewStatus))
	}
	tr.ReportID = r.ID
	tr.ExpectedStatus = r.Status
	tr.ExpectedVersion = r.Version
	tr.Event.FromStatus = r.Status
	tr.Event.ToStatus = tr.NewStatus
	tr.Event.ActorID = actor.UserID
	tr.Event.ActorRole = actor.RoleName()
	updated, err := s.reports.TransitionReport(ctx, tr)
	if errors.Is(err, store.ErrConflict) {
		s.logger.WithUser(actor.Username).Warnf("report %d: concurrent %s lost (expected %s v%d)", r.ID, op, r.Status, r.Version)
		return nil, s.refuse(op, invalidTransitionError("reports.concurrentUpdate", "report %d changed concurrently; reload and retry", r.ID))
	}
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "reports."+op, fmt.Sprintf("id=%d %s->%s %s", r.ID, r.Status, updated.Status, tr.Event.Details))
	s.metrics.TransitionCommitted(tr.Event.EventType, string(r.Status), string(updated.Status))
	view := viewFor(actor, *updated)
	return &view, nil
}

func (s *Service) refuse(op string, err error) error {
	if kind, ok := apperr.KindOf(err); ok {
		s.metrics.TransitionRefused(op, string(kind))
	}
	return err
}

func (s *Service) audit(ctx context.Context, actor *roles.Actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, actor.Username, action, details); err != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}
