package jobs

import "time"

// ObjectPaths holds the local and remote locations for a crawl output
// file set. Remote is empty when object storage upload did not run.
type ObjectPaths struct {
	LocalJSON  string `json:"local_json,omitempty"`
	LocalText  string `json:"local_text,omitempty"`
	LocalPDF   string `json:"local_pdf,omitempty"`
	RemoteJSON string `json:"remote_json,omitempty"`
	RemoteText string `json:"remote_text,omitempty"`
	RemotePDF  string `json:"remote_pdf,omitempty"`
}

// CrawlStateRecord is the indexed outcome of a single URL crawl, keyed by
// url_hash (§3).
type CrawlStateRecord struct {
	URLHash       string      `json:"url_hash"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	CrawledAt     time.Time   `json:"crawled_at"`
	PublishedAt   *time.Time  `json:"published_at,omitempty"`
	HasContent    bool        `json:"has_content"`
	ContentLength int         `json:"content_length"`
	Keywords      []string    `json:"keywords,omitempty"`
	Paths         ObjectPaths `json:"paths"`
	Success       bool        `json:"success"`
	Error         string      `json:"error,omitempty"`
	TTL           int64       `json:"ttl"`
}
