// Package jobs defines the wire types exchanged between the RSS scheduler,
// the queue, and the consumer engine: the job envelope, feed task
// configuration, processed-URL markers, and crawl state records.
package jobs

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Envelope types understood by the message router (§4.2).
const (
	TypeCrawlSingleURL = "crawl-single-url"
	TypeCrawlRSS        = "crawl-rss"
)

var validEnvelopeTypes = map[string]bool{
	TypeCrawlSingleURL: true,
	TypeCrawlRSS:        true,
}

// Envelope is the JSON payload carried as a queue message body.
type Envelope struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags,omitempty"`
	SavePDF    bool     `json:"save_pdf"`
	RetryCount int      `json:"retry_count,omitempty"`
}

// Validate enforces the Job Envelope invariants from spec §3:
// id non-empty, url syntactically valid, type known.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return errors.New("envelope: id is required")
	}
	if !validEnvelopeTypes[e.Type] {
		return fmt.Errorf("envelope: unknown type %q", e.Type)
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("envelope: invalid url %q", e.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("envelope: unsupported url scheme %q", u.Scheme)
	}
	return nil
}

// Marshal encodes the envelope as JSON, the queue message body format.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes a queue message body into an Envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &e, nil
}

// WithRetry returns a copy of the envelope with RetryCount incremented by
// one. Used by the consumer engine when re-emitting a retryable failure.
func (e Envelope) WithRetry() Envelope {
	e.RetryCount++
	return e
}

// URLHash8 returns the last 8 hex characters of the MD5 hash of a URL,
// used both as the object-store key segment (§4.3) and as the suffix of
// deterministic envelope and marker ids (§4.4).
func URLHash8(rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) // #nosec G401 -- content-addressing, not a security boundary
	h := hex.EncodeToString(sum[:])
	return h[len(h)-8:]
}

// URLHashHex returns the full hex MD5 hash of a URL, used as the
// processed-URL marker sort key (§3, §6).
func URLHashHex(rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) // #nosec G401 -- content-addressing, not a security boundary
	return hex.EncodeToString(sum[:])
}

// SingleURLEnvelopeID builds the deterministic id the RSS scheduler uses
// for a crawl-single-url envelope: "{task_id}-{hash8(url)}" (§4.4).
func SingleURLEnvelopeID(taskID, rawURL string) string {
	return fmt.Sprintf("%s-%s", taskID, URLHash8(rawURL))
}
