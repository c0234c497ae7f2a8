package httpapi

import (
	"net/http"

	"harvester/internal/handler/http/respond"
)

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
