// Package roles classifies authenticated actors into the authorization tiers
// used by the report workflow.
package roles

import (
	"fmt"
	"strings"

	"cityfix/core/store"
)

type Tier int

const (
	TierCitizen Tier = iota + 1
	TierTechnical
	TierPublicRelations
	TierExternalMaintainer
	TierAdministrator
)

func (t Tier) String() string {
	switch t {
	case TierCitizen:
		return "citizen"
	case TierTechnical:
		return "technical"
	case TierPublicRelations:
		return "public_relations"
	case TierExternalMaintainer:
		return "external_maintainer"
	case TierAdministrator:
		return "administrator"
	}
	return "unknown"
}

// Role is a closed set: only the types in this package implement it.
type Role interface {
	Tier() Tier
	Name() string
	role()
}

type Citizen struct{}

type Technical struct {
	Department Department
}

type PublicRelations struct{}

type ExternalMaintainer struct{}

type Administrator struct{}

func (Citizen) Tier() Tier            { return TierCitizen }
func (Technical) Tier() Tier          { return TierTechnical }
func (PublicRelations) Tier() Tier    { return TierPublicRelations }
func (ExternalMaintainer) Tier() Tier { return TierExternalMaintainer }
func (Administrator) Tier() Tier      { return TierAdministrator }

func (Citizen) Name() string            { return "CITIZEN" }
func (t Technical) Name() string        { return string(t.Department) }
func (PublicRelations) Name() string    { return "PUBLIC_RELATIONS" }
func (ExternalMaintainer) Name() string { return "EXTERNAL_MAINTAINER" }
func (Administrator) Name() string      { return "ADMINISTRATOR" }

func (Citizen) role()            {}
func (Technical) role()          {}
func (PublicRelations) role()    {}
func (ExternalMaintainer) role() {}
func (Administrator) role()      {}

// Parse maps a persisted role name to its Role.
func Parse(name string) (Role, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	switch up {
	case "CITIZEN":
		return Citizen{}, nil
	case "PUBLIC_RELATIONS":
		return PublicRelations{}, nil
	case "EXTERNAL_MAINTAINER":
		return ExternalMaintainer{}, nil
	case "ADMINISTRATOR":
		return Administrator{}, nil
	}
	if d, ok := ParseDepartment(up); ok {
		return Technical{Department: d}, nil
	}
	return nil, fmt.Errorf("unknown role %q", name)
}

// Actor is an authenticated user as seen by the core services.
type Actor struct {
	UserID    int64
	Username  string
	Role      Role
	CompanyID *int64
}

func RoleOf(a *Actor) Role {
	if a == nil {
		return nil
	}
	return a.Role
}

func TierOf(a *Actor) Tier {
	if a == nil || a.Role == nil {
		return 0
	}
	return a.Role.Tier()
}

func (a *Actor) RoleName() string {
	if a == nil || a.Role == nil {
		return ""
	}
	return a.Role.Name()
}

// ActorFromUser builds an actor from a stored user row.
func ActorFromUser(u *store.User) (*Actor, error) {
	if u == nil {
		return nil, fmt.Errorf("nil user")
	}
	r, err := Parse(u.Role)
	if err != nil {
		return nil, err
	}
	return &Actor{UserID: u.ID, Username: u.Username, Role: r, CompanyID: u.CompanyID}, nil
}
