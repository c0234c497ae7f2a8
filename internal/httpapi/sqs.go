package httpapi

import (
	"encoding/json"
	"net/http"

	"harvester/internal/handler/http/respond"
)

// sqsStatus returns the consumer's run state plus current queue depth
// counters (spec §6's "GET /sqs/status").
func (h *handlers) sqsStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Engine.Status(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, status)
}

func (h *handlers) sqsPause(w http.ResponseWriter, r *http.Request) {
	h.deps.Engine.Pause()
	respond.JSON(w, http.StatusOK, map[string]string{"state": h.deps.Engine.State().String()})
}

func (h *handlers) sqsResume(w http.ResponseWriter, r *http.Request) {
	h.deps.Engine.Resume()
	respond.JSON(w, http.StatusOK, map[string]string{"state": h.deps.Engine.State().String()})
}

type sendMessageRequest struct {
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// sqsSendMessage injects an arbitrary body onto the queue, bypassing the
// scheduler entirely (spec §6's "POST /sqs/send_message").
func (h *handlers) sqsSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Body == "" {
		respond.Error(w, http.StatusBadRequest, errBodyRequired)
		return
	}
	if err := h.deps.Queue.Send(r.Context(), req.Body, req.Attributes, 0); err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
