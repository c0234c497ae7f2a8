// Package crawl implements the crawl-single-url handler: a single-flight
// concurrency gate, deterministic object-store key layout, and
// write-then-index persistence order, grounded on
// harvester/app/crawler.py's crawl_urls and dynamodb.py's
// store_crawled_website_in_dynamodb.
package crawl

import (
	"fmt"
	"time"

	"harvester/internal/jobs"
)

// KeyLayout computes the deterministic object-store prefix for a crawl
// result: {base}/{task_id}/{YYYY}/{MM}/{DD}/{hash8}/, mirroring
// crawler.py's f"{today.year}/{today.month:02d}/{today.day:02d}/{url_hash}"
// path, extended with a task-scoped base per spec §4.4.
type KeyLayout struct {
	Base string
}

// Prefix returns the directory-style key prefix for url crawled under
// taskID at crawledAt.
func (l KeyLayout) Prefix(taskID, url string, crawledAt time.Time) string {
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s/",
		l.Base, taskID, crawledAt.Year(), crawledAt.Month(), crawledAt.Day(), jobs.URLHash8(url))
}

func (l KeyLayout) JSONKey(taskID, url string, crawledAt time.Time) string {
	return l.Prefix(taskID, url, crawledAt) + "article.json"
}

func (l KeyLayout) TextKey(taskID, url string, crawledAt time.Time) string {
	return l.Prefix(taskID, url, crawledAt) + "article.txt"
}

func (l KeyLayout) PDFKey(taskID, url string, crawledAt time.Time) string {
	return l.Prefix(taskID, url, crawledAt) + "article.pdf"
}
