package handlers

import (
	"net/http"

	"cityfix/core/messaging"
	"cityfix/core/notes"
	"cityfix/core/store"
	"cityfix/core/utils"
)

// ThreadsHandler serves the two per-report threads: citizen-facing messages
// and staff-only internal notes.
type ThreadsHandler struct {
	messages *messaging.Service
	notes    *notes.Service
	logger   *utils.Logger
}

func NewThreadsHandler(messages *messaging.Service, notesSvc *notes.Service, logger *utils.Logger) *ThreadsHandler {
	return &ThreadsHandler{messages: messages, notes: notesSvc, logger: logger}
}

type threadPayload struct {
	Content string `json:"content" validate:"required"`
}

func (h *ThreadsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	after, err := queryAfter(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items, err := h.messages.List(r.Context(), actor, id, after)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if items == nil {
		items = []store.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (h *ThreadsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload threadPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	msg, err := h.messages.Post(r.Context(), actor, id, payload.Content)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ThreadsHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	after, err := queryAfter(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items, err := h.notes.List(r.Context(), actor, id, after)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if items == nil {
		items = []store.InternalNote{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": items})
}

func (h *ThreadsHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var payload threadPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	note, err := h.notes.Add(r.Context(), actor, id, payload.Content)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
