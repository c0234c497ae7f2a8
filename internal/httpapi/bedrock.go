package httpapi

import (
	"net/http"

	"harvester/internal/handler/http/respond"
)

// bedrockToken exposes the current cached Bedrock bearer token for
// operators debugging the LLM extractor's credential refresh loop (spec
// §6's "GET /bedrock/token"). It never forces a refresh; it returns
// whatever the background Refresher currently holds.
func (h *handlers) bedrockToken(w http.ResponseWriter, r *http.Request) {
	if h.deps.Credentials == nil {
		respond.Error(w, http.StatusServiceUnavailable, errCredentialsUnavailable)
		return
	}
	tok, err := h.deps.Credentials.Token(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusBadGateway, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"expires_at": tok.ExpiresAt,
	})
}
