package handlers

import (
	"net/http"

	"cityfix/core/reports"
	"cityfix/core/utils"
)

type ReportsHandler struct {
	svc    *reports.Service
	logger *utils.Logger
}

func NewReportsHandler(svc *reports.Service, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, logger: logger}
}

type photoPayload struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	Filename string `json:"filename" validate:"max=255"`
}

type createReportPayload struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=4000"`
	Category    string         `json:"category" validate:"required"`
	Latitude    *float64       `json:"latitude" validate:"required"`
	Longitude   *float64       `json:"longitude" validate:"required"`
	IsAnonymous bool           `json:"is_anonymous"`
	Photos      []photoPayload `json:"photos" validate:"required,dive"`
}

type approvePayload struct {
	TechnicianID int64 `json:"technician_id" validate:"required,gt=0"`
}

type rejectPayload struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type externalPayload struct {
	CompanyID    int64  `json:"company_id" validate:"required,gt=0"`
	MaintainerID *int64 `json:"maintainer_id" validate:"omitempty,gt=0"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required"`
}

func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListReports(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var payload createReportPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	in := reports.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Latitude:    *payload.Latitude,
		Longitude:   *payload.Longitude,
		IsAnonymous: payload.IsAnonymous,
	}
	for _, p := range payload.Photos {
		in.Photos = append(in.Photos, reports.PhotoInput{URL: p.URL, Filename: p.Filename})
	}
	report, err := h.svc.CreateReport(r.Context(), actor, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	detail, err := h.svc.GetReport(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ReportsHandler) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	events, err := h.svc.ListEvents(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *ReportsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload approvePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	report, err := h.svc.Approve(r.Context(), actor, id, payload.TechnicianID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload rejectPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	report, err := h.svc.Reject(r.Context(), actor, id, payload.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportsHandler) AssignExternal(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload externalPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	report, err := h.svc.AssignToExternal(r.Context(), actor, id, payload.CompanyID, payload.MaintainerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload statusPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	report, err := h.svc.UpdateStatus(r.Context(), actor, id, payload.Status)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportsHandler) AssignableTechnicals(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	users, err := h.svc.AssignableTechnicals(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"technicals": users})
}

func (h *ReportsHandler) AssignableExternals(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	targets, err := h.svc.AssignableExternals(r.Context(), actor, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"externals": targets})
}
