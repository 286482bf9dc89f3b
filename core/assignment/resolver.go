// Package assignment computes who may receive a report. Every call reads the
// current roster; nothing is cached between calls.
package assignment

import (
	"context"
	"errors"

	"cityfix/core/roles"
	"cityfix/core/store"
)

var (
	ErrUnknownCompany        = errors.New("company not found")
	ErrCategoryNotHandled    = errors.New("company does not handle category")
	ErrNoPlatformAccess      = errors.New("company has no platform access")
	ErrMaintainerNotEligible = errors.New("maintainer not eligible")
)

const maintainerRole = "EXTERNAL_MAINTAINER"

type ExternalTarget struct {
	Company     store.ExternalCompany `json:"company"`
	Maintainers []store.User          `json:"maintainers"`
}

type Resolver struct {
	users     store.UsersStore
	companies store.CompaniesStore
}

func NewResolver(users store.UsersStore, companies store.CompaniesStore) *Resolver {
	return &Resolver{users: users, companies: companies}
}

// EligibleTechnicalStaff returns active users of every department owning category.
func (r *Resolver) EligibleTechnicalStaff(ctx context.Context, category store.Category) ([]store.User, error) {
	names := roles.DepartmentRoleNames(category)
	if len(names) == 0 {
		return []store.User{}, nil
	}
	users, err := r.users.ListByRoles(ctx, names)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []store.User{}
	}
	return users, nil
}

// EligibleExternalTargets returns companies handling category. Platform-enabled
// companies also carry their active maintainers.
func (r *Resolver) EligibleExternalTargets(ctx context.Context, category store.Category) ([]ExternalTarget, error) {
	companies, err := r.companies.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	out := []ExternalTarget{}
	for _, c := range companies {
		if !c.Handles(category) {
			continue
		}
		target := ExternalTarget{Company: c, Maintainers: []store.User{}}
		if c.PlatformAccess {
			maintainers, err := r.users.ListByCompany(ctx, c.ID, maintainerRole)
			if err != nil {
				return nil, err
			}
			if maintainers != nil {
				target.Maintainers = maintainers
			}
		}
		out = append(out, target)
	}
	return out, nil
}

func (r *Resolver) TechnicianEligible(ctx context.Context, category store.Category, userID int64) (bool, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil || u == nil || !u.Active {
		return false, err
	}
	role, err := roles.Parse(u.Role)
	if err != nil {
		return false, nil
	}
	tech, ok := role.(roles.Technical)
	return ok && tech.Department.Handles(category), nil
}

// ResolveExternal validates an external target and builds the assignment for it.
func (r *Resolver) ResolveExternal(ctx context.Context, category store.Category, companyID int64, maintainerID *int64) (store.Assignment, error) {
	company, err := r.companies.GetCompany(ctx, companyID)
	if err != nil {
		return store.Assignment{}, err
	}
	if company == nil {
		return store.Assignment{}, ErrUnknownCompany
	}
	if !company.Handles(category) {
		return store.Assignment{}, ErrCategoryNotHandled
	}
	if maintainerID == nil {
		return store.ToCompany(company.ID), nil
	}
	if !company.PlatformAccess {
		return store.Assignment{}, ErrNoPlatformAccess
	}
	u, err := r.users.Get(ctx, *maintainerID)
	if err != nil {
		return store.Assignment{}, err
	}
	if u == nil || !u.Active || u.Role != maintainerRole || u.CompanyID == nil || *u.CompanyID != company.ID {
		return store.Assignment{}, ErrMaintainerNotEligible
	}
	return store.ToMaintainer(company.ID, u.ID), nil
}

// MaintainerHandles reports whether a maintainer currently handles a report
// with assignment a. Both assignment kinds count only while the company keeps
// platform access.
func (r *Resolver) MaintainerHandles(ctx context.Context, actor *roles.Actor, a store.Assignment) (bool, error) {
	if roles.TierOf(actor) != roles.TierExternalMaintainer {
		return false, nil
	}
	companyID, external := a.CompanyID()
	if !external || actor.CompanyID == nil || companyID != *actor.CompanyID {
		return false, nil
	}
	if id, ok := a.MaintainerID(); ok && id != actor.UserID {
		return false, nil
	}
	company, err := r.companies.GetCompany(ctx, companyID)
	if err != nil || company == nil {
		return false, err
	}
	return company.PlatformAccess, nil
}
