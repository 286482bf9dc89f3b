package reports

import (
	"context"

	"cityfix/core/roles"
	"cityfix/core/store"
)

// InHandlingChain reports whether a technical actor currently holds r or routed
// it to an external handler.
func InHandlingChain(actor *roles.Actor, r *store.Report) bool {
	if roles.TierOf(actor) != roles.TierTechnical || r == nil {
		return false
	}
	if id, ok := r.Assignment.TechnicianID(); ok && id == actor.UserID {
		return true
	}
	return r.ExternalAssignedBy != nil && *r.ExternalAssignedBy == actor.UserID
}

// IsCurrentHolder reports whether actor is the report's active assignee.
func (s *Service) IsCurrentHolder(ctx context.Context, actor *roles.Actor, r *store.Report) (bool, error) {
	switch roles.TierOf(actor) {
	case roles.TierTechnical:
		id, ok := r.Assignment.TechnicianID()
		return ok && id == actor.UserID, nil
	case roles.TierExternalMaintainer:
		return s.resolver.MaintainerHandles(ctx, actor, r.Assignment)
	}
	return false, nil
}

func (s *Service) relationOf(ctx context.Context, actor *roles.Actor, r *store.Report) (handlerRelation, error) {
	switch roles.TierOf(actor) {
	case roles.TierTechnical:
		if id, ok := r.Assignment.TechnicianID(); ok && id == actor.UserID {
			return relInternalTechnician, nil
		}
		if r.Assignment.External() && r.ExternalAssignedBy != nil && *r.ExternalAssignedBy == actor.UserID {
			return relAssigningOfficer, nil
		}
	case roles.TierExternalMaintainer:
		ok, err := s.resolver.MaintainerHandles(ctx, actor, r.Assignment)
		if err != nil {
			return relNone, err
		}
		if ok {
			return relMaintainer, nil
		}
	}
	return relNone, nil
}

// canView applies the per-tier visibility used by list and detail reads.
func (s *Service) canView(ctx context.Context, actor *roles.Actor, r *store.Report) (bool, error) {
	switch roles.TierOf(actor) {
	case roles.TierCitizen:
		return r.CreatedBy == actor.UserID || r.Status != store.StatusPendingApproval, nil
	case roles.TierPublicRelations:
		return true, nil
	case roles.TierTechnical:
		return InHandlingChain(actor, r), nil
	case roles.TierExternalMaintainer:
		return s.resolver.MaintainerHandles(ctx, actor, r.Assignment)
	}
	return false, nil
}

// ReportView is a report as shown to one actor. The creator is hidden on
// anonymous reports for everyone but the creator.
type ReportView struct {
	store.Report
	CreatedBy *int64 `json:"created_by"`
}

func viewFor(actor *roles.Actor, r store.Report) ReportView {
	v := ReportView{Report: r}
	if !r.IsAnonymous || (actor != nil && actor.UserID == r.CreatedBy) {
		creator := r.CreatedBy
		v.CreatedBy = &creator
	}
	return v
}

func viewsFor(actor *roles.Actor, list []store.Report) []ReportView {
	out := make([]ReportView, 0, len(list))
	for _, r := range list {
		out = append(out, viewFor(actor, r))
	}
	return out
}
