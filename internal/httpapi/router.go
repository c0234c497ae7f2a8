// Package httpapi implements the control-surface HTTP API (spec §6):
// consumer pause/resume/status, ad-hoc message injection, single-URL and
// RSS-task crawl triggers, the current Bedrock credential, and a health
// check. Routed with chi, adopted from jordigilh-kubernaut's stack for
// its route params and middleware chaining; the teacher's plain
// net/http.ServeMux (internal/handler/http) is left in place for the
// worker's own liveness pair.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"harvester/internal/consumer"
	"harvester/internal/credential"
	"harvester/internal/extractor"
	"harvester/internal/handler/http/requestid"
	"harvester/internal/httpapi/auth"
	"harvester/internal/infra/queue"
	"harvester/internal/infra/state"
)

// HTMLFetcher mirrors internal/handler/crawl.HTMLFetcher, duplicated
// here to avoid this package depending on internal/handler/crawl for a
// single-method interface.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Deps are the collaborators the control surface dispatches to.
type Deps struct {
	Engine      *consumer.Engine
	Queue       queue.Queue
	FeedTasks   state.FeedTaskStore
	HTMLFetcher HTMLFetcher
	Primary     extractor.Extractor
	Fallback    extractor.Extractor
	Credentials *credential.Refresher
	Logger      *slog.Logger
}

// NewRouter builds the control-surface HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)

	h := &handlers{deps: deps}

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer)

		r.Get("/sqs/status", h.sqsStatus)
		r.Get("/sqs/pause", h.sqsPause)
		r.Get("/sqs/resume", h.sqsResume)
		r.Post("/sqs/send_message", h.sqsSendMessage)

		r.Post("/crawl/url", h.crawlURL)
		r.Post("/crawl/url_response", h.crawlURLResponse)
		r.Post("/crawl/rss", h.crawlRSS)

		r.Get("/bedrock/token", h.bedrockToken)
	})

	return r
}

type handlers struct {
	deps Deps
}
