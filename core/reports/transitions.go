package reports

import "cityfix/core/store"

// stateGraph is the full set of status edges any operation may commit.
var stateGraph = map[store.ReportStatus][]store.ReportStatus{
	store.StatusPendingApproval:  {store.StatusAssigned, store.StatusRejected},
	store.StatusAssigned:         {store.StatusInProgress, store.StatusSuspended, store.StatusResolved, store.StatusExternalAssigned},
	store.StatusExternalAssigned: {store.StatusInProgress, store.StatusSuspended, store.StatusResolved},
	store.StatusInProgress:       {store.StatusSuspended, store.StatusResolved},
	store.StatusSuspended:        {store.StatusInProgress, store.StatusResolved},
}

func Reachable(from, to store.ReportStatus) bool {
	for _, next := range stateGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// handlerRelation is how an actor stands toward a report for status updates.
type handlerRelation int

const (
	relNone handlerRelation = iota
	relInternalTechnician
	relAssigningOfficer
	relMaintainer
)

func (r handlerRelation) String() string {
	switch r {
	case relInternalTechnician:
		return "technician"
	case relAssigningOfficer:
		return "assigning_officer"
	case relMaintainer:
		return "maintainer"
	}
	return "none"
}

var workSources = map[handlerRelation][]store.ReportStatus{
	relInternalTechnician: {store.StatusAssigned, store.StatusInProgress, store.StatusSuspended},
	relAssigningOfficer:   {store.StatusExternalAssigned, store.StatusInProgress, store.StatusSuspended},
	relMaintainer:         {store.StatusExternalAssigned, store.StatusInProgress, store.StatusSuspended},
}

var workTargets = []store.ReportStatus{store.StatusInProgress, store.StatusSuspended, store.StatusResolved}

func containsStatus(list []store.ReportStatus, s store.ReportStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

const (
	EventCreated          = "created"
	EventApproved         = "approved"
	EventRejected         = "rejected"
	EventAssignedExternal = "assigned_external"
	EventStatusChanged    = "status_changed"
)
