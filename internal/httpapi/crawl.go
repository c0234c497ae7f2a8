package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"harvester/internal/handler/http/respond"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

type crawlURLRequest struct {
	URL     string   `json:"url"`
	Tags    []string `json:"tags,omitempty"`
	SavePDF bool     `json:"save_pdf"`
}

// crawlURL enqueues a single URL as a crawl-single-url envelope (spec
// §6's "POST /crawl/url"). The envelope id is the url's own hash8, since
// there is no feed task scoping an ad-hoc crawl.
func (h *handlers) crawlURL(w http.ResponseWriter, r *http.Request) {
	var req crawlURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		respond.Error(w, http.StatusBadRequest, errURLRequired)
		return
	}

	envelope := jobs.Envelope{
		Type:    jobs.TypeCrawlSingleURL,
		ID:      "adhoc-" + jobs.URLHash8(req.URL),
		URL:     req.URL,
		Tags:    req.Tags,
		SavePDF: req.SavePDF,
	}
	if err := envelope.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	body, err := envelope.Marshal()
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.deps.Queue.Send(r.Context(), string(body), nil, 0); err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"id": envelope.ID, "status": "enqueued"})
}

type crawlURLResponseRequest struct {
	URL string `json:"url"`
}

// crawlURLResponse runs the extractor synchronously over a fetched page
// and returns the article JSON without persisting anything (spec §6's
// "POST /crawl/url_response"), bypassing the queue entirely.
func (h *handlers) crawlURLResponse(w http.ResponseWriter, r *http.Request) {
	var req crawlURLResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		respond.Error(w, http.StatusBadRequest, errURLRequired)
		return
	}

	ctx := r.Context()
	html, err := h.deps.HTMLFetcher.FetchHTML(ctx, req.URL)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	article, err := h.deps.Primary.Extract(ctx, req.URL, html)
	if err != nil && h.deps.Fallback != nil {
		h.deps.Logger.Warn("crawl/url_response: primary extractor failed, using fallback",
			"url", req.URL, "error", err.Error())
		article, err = h.deps.Fallback.Extract(ctx, req.URL, html)
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, article)
}

// crawlRSS inserts a new RSS feed task, rejecting with 409 if task_id
// already exists (spec §6's "POST /crawl/rss").
func (h *handlers) crawlRSS(w http.ResponseWriter, r *http.Request) {
	var task jobs.FeedTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if task.TaskType == "" {
		task.TaskType = jobs.TaskTypeRSS
	}
	if err := task.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if err := h.deps.FeedTasks.Create(ctx, task); err != nil {
		if errors.Is(err, state.ErrAlreadyExists) {
			respond.Error(w, http.StatusConflict, errTaskIDExists)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"task_id": task.TaskID, "status": "created"})
}
