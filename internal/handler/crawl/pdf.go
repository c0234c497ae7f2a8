package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFCapturer renders a page to a printable PDF, grounded on
// harvester/app/crawler.py's crawl4ai pdf=True capture path, which this
// core reimplements with a real headless-browser driver instead of
// delegating to the extractor.
type PDFCapturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// ChromeDPCapturer captures a page as PDF using a headless Chrome
// instance driven by chromedp.
type ChromeDPCapturer struct {
	Timeout time.Duration
}

// NewChromeDPCapturer builds a ChromeDPCapturer with the given per-capture
// timeout.
func NewChromeDPCapturer(timeout time.Duration) *ChromeDPCapturer {
	return &ChromeDPCapturer{Timeout: timeout}
}

func (c *ChromeDPCapturer) Capture(ctx context.Context, url string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(browserCtx, c.Timeout)
	defer timeoutCancel()

	var pdfBytes []byte
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pdf capture: %w", err)
	}
	return pdfBytes, nil
}
