package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryWaterSupply      Category = "WATER_SUPPLY_DRINKING_WATER"
	CategoryArchitectural    Category = "ARCHITECTURAL_BARRIERS"
	CategorySewerSystem      Category = "SEWER_SYSTEM"
	CategoryPublicLighting   Category = "PUBLIC_LIGHTING"
	CategoryWaste            Category = "WASTE"
	CategoryRoadSigns        Category = "ROAD_SIGNS_TRAFFIC_LIGHTS"
	CategoryRoadsFurnishings Category = "ROADS_URBAN_FURNISHINGS"
	CategoryGreenAreas       Category = "PUBLIC_GREEN_AREAS_PLAYGROUNDS"
	CategoryOther            Category = "OTHER"
)

var Categories = []Category{
	CategoryWaterSupply,
	CategoryArchitectural,
	CategorySewerSystem,
	CategoryPublicLighting,
	CategoryWaste,
	CategoryRoadSigns,
	CategoryRoadsFurnishings,
	CategoryGreenAreas,
	CategoryOther,
}

func ParseCategory(raw string) (Category, bool) {
	up := Category(strings.ToUpper(strings.TrimSpace(raw)))
	for _, c := range Categories {
		if c == up {
			return c, true
		}
	}
	return "", false
}

type ReportStatus string

const (
	StatusPendingApproval  ReportStatus = "PENDING_APPROVAL"
	StatusAssigned         ReportStatus = "ASSIGNED"
	StatusExternalAssigned ReportStatus = "EXTERNAL_ASSIGNED"
	StatusInProgress       ReportStatus = "IN_PROGRESS"
	StatusSuspended        ReportStatus = "SUSPENDED"
	StatusRejected         ReportStatus = "REJECTED"
	StatusResolved         ReportStatus = "RESOLVED"
)

var Statuses = []ReportStatus{
	StatusPendingApproval,
	StatusAssigned,
	StatusExternalAssigned,
	StatusInProgress,
	StatusSuspended,
	StatusRejected,
	StatusResolved,
}

func ParseStatus(raw string) (ReportStatus, bool) {
	up := ReportStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s == up {
			return s, true
		}
	}
	return "", false
}

func (s ReportStatus) Terminal() bool {
	return s == StatusRejected || s == StatusResolved
}

type AssignmentKind string

const (
	AssignmentNone       AssignmentKind = "none"
	AssignmentTechnician AssignmentKind = "technician"
	AssignmentCompany    AssignmentKind = "company"
	AssignmentMaintainer AssignmentKind = "maintainer"
)

// Assignment is the single active handler of a report. The zero value is unassigned.
// Fields are unexported so a value can only be built through the constructors below.
type Assignment struct {
	kind      AssignmentKind
	userID    int64
	companyID int64
}

func Unassigned() Assignment { return Assignment{kind: AssignmentNone} }

func ToTechnician(userID int64) Assignment {
	return Assignment{kind: AssignmentTechnician, userID: userID}
}

func ToCompany(companyID int64) Assignment {
	return Assignment{kind: AssignmentCompany, companyID: companyID}
}

func ToMaintainer(companyID, userID int64) Assignment {
	return Assignment{kind: AssignmentMaintainer, companyID: companyID, userID: userID}
}

func (a Assignment) Kind() AssignmentKind {
	if a.kind == "" {
		return AssignmentNone
	}
	return a.kind
}

// TechnicianID is set only for technician assignments.
func (a Assignment) TechnicianID() (int64, bool) {
	if a.kind == AssignmentTechnician {
		return a.userID, true
	}
	return 0, false
}

// CompanyID is set for company and maintainer assignments.
func (a Assignment) CompanyID() (int64, bool) {
	if a.kind == AssignmentCompany || a.kind == AssignmentMaintainer {
		return a.companyID, true
	}
	return 0, false
}

func (a Assignment) MaintainerID() (int64, bool) {
	if a.kind == AssignmentMaintainer {
		return a.userID, true
	}
	return 0, false
}

func (a Assignment) External() bool {
	return a.kind == AssignmentCompany || a.kind == AssignmentMaintainer
}

func (a Assignment) columns() (string, *int64, *int64) {
	switch a.Kind() {
	case AssignmentTechnician:
		return string(AssignmentTechnician), &a.userID, nil
	case AssignmentCompany:
		return string(AssignmentCompany), nil, &a.companyID
	case AssignmentMaintainer:
		return string(AssignmentMaintainer), &a.userID, &a.companyID
	default:
		return string(AssignmentNone), nil, nil
	}
}

func assignmentFromColumns(kind string, userID, companyID *int64) (Assignment, error) {
	switch AssignmentKind(kind) {
	case AssignmentNone, "":
		return Unassigned(), nil
	case AssignmentTechnician:
		if userID == nil {
			return Assignment{}, fmt.Errorf("technician assignment without user")
		}
		return ToTechnician(*userID), nil
	case AssignmentCompany:
		if companyID == nil {
			return Assignment{}, fmt.Errorf("company assignment without company")
		}
		return ToCompany(*companyID), nil
	case AssignmentMaintainer:
		if userID == nil || companyID == nil {
			return Assignment{}, fmt.Errorf("maintainer assignment incomplete")
		}
		return ToMaintainer(*companyID, *userID), nil
	}
	return Assignment{}, fmt.Errorf("unknown assignment kind %q", kind)
}

type assignmentJSON struct {
	Kind         AssignmentKind `json:"kind"`
	TechnicianID *int64         `json:"technician_id,omitempty"`
	CompanyID    *int64         `json:"company_id,omitempty"`
	MaintainerID *int64         `json:"maintainer_id,omitempty"`
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	out := assignmentJSON{Kind: a.Kind()}
	if id, ok := a.TechnicianID(); ok {
		out.TechnicianID = &id
	}
	if id, ok := a.CompanyID(); ok {
		out.CompanyID = &id
	}
	if id, ok := a.MaintainerID(); ok {
		out.MaintainerID = &id
	}
	return json.Marshal(out)
}

type Report struct {
	ID                 int64         `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Category           Category      `json:"category"`
	Status             ReportStatus  `json:"status"`
	Latitude           float64       `json:"latitude"`
	Longitude          float64       `json:"longitude"`
	IsAnonymous        bool          `json:"is_anonymous"`
	CreatedBy          int64         `json:"created_by"`
	Assignment         Assignment    `json:"assignment"`
	ExternalAssignedBy *int64        `json:"external_assigned_by,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Version            int           `json:"version"`
	Photos             []ReportPhoto `json:"photos,omitempty"`
}

type ReportPhoto struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportEvent struct {
	ID         int64        `json:"id"`
	ReportID   int64        `json:"report_id"`
	EventType  string       `json:"event_type"`
	FromStatus ReportStatus `json:"from_status,omitempty"`
	ToStatus   ReportStatus `json:"to_status"`
	ActorID    int64        `json:"actor_id"`
	ActorRole  string       `json:"actor_role"`
	Details    string       `json:"details,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReportTransition describes a check-then-set update. It commits only while the
// row still carries ExpectedStatus and ExpectedVersion.
type ReportTransition struct {
	ReportID           int64
	ExpectedStatus     ReportStatus
	ExpectedVersion    int
	NewStatus          ReportStatus
	Assignment         Assignment
	ExternalAssignedBy *int64
	RejectionReason    string
	Event              ReportEvent
}

type ReportFilter struct {
	Status          ReportStatus
	ExcludeStatus   ReportStatus
	CreatedBy       int64
	VisibleToUserID int64
	TechnicianID    int64
	MaintainerID    int64
	MaintainerOrg   int64
	Limit           int
	Offset          int
}
