package rbac

import (
	"fmt"

	"cityfix/core/roles"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermReportsView           Permission = "reports.view"
	PermReportsCreate         Permission = "reports.create"
	PermReportsApprove        Permission = "reports.approve"
	PermReportsAssignExternal Permission = "reports.assign_external"
	PermReportsStatus         Permission = "reports.status"
	PermMessagesUse           Permission = "messages.use"
	PermNotesUse              Permission = "notes.use"
	PermCompaniesManage       Permission = "companies.manage"
	PermUsersManage           Permission = "users.manage"
)

const policyModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj
`

// DefaultGrants is the coarse per-tier permission set. Report-level checks
// (assignment, handling chain) happen in the core services.
var DefaultGrants = map[roles.Tier][]Permission{
	roles.TierCitizen: {
		PermReportsView, PermReportsCreate, PermMessagesUse,
	},
	roles.TierPublicRelations: {
		PermReportsView, PermReportsApprove, PermNotesUse,
	},
	roles.TierTechnical: {
		PermReportsView, PermReportsAssignExternal, PermReportsStatus, PermMessagesUse, PermNotesUse,
	},
	roles.TierExternalMaintainer: {
		PermReportsView, PermReportsStatus, PermMessagesUse,
	},
	roles.TierAdministrator: {
		PermCompaniesManage, PermUsersManage,
	},
}

type Policy struct {
	enforcer *casbin.Enforcer
	grants   map[roles.Tier][]Permission
}

func NewPolicy(grants map[roles.Tier][]Permission) (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	copied := make(map[roles.Tier][]Permission, len(grants))
	for tier, perms := range grants {
		copied[tier] = append([]Permission(nil), perms...)
		for _, p := range perms {
			if _, err := e.AddPolicy(tier.String(), string(p)); err != nil {
				return nil, fmt.Errorf("rbac policy %s/%s: %w", tier, p, err)
			}
		}
	}
	return &Policy{enforcer: e, grants: copied}, nil
}

func NewDefaultPolicy() (*Policy, error) {
	return NewPolicy(DefaultGrants)
}

func (p *Policy) Allowed(tier roles.Tier, perm Permission) bool {
	if p == nil || p.enforcer == nil || tier == 0 {
		return false
	}
	ok, err := p.enforcer.Enforce(tier.String(), string(perm))
	if err != nil {
		return false
	}
	return ok
}

// Permissions lists what tier holds, for the /me payload.
func (p *Policy) Permissions(tier roles.Tier) []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.grants[tier]))
	for _, perm := range p.grants[tier] {
		if p.Allowed(tier, perm) {
			out = append(out, string(perm))
		}
	}
	return out
}
