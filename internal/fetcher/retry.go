package fetcher

import "time"

// retryBudget tracks three independent failure categories across the
// attempts made for a single URL. Each category has its own ceiling so a
// flaky proxy chewing through connection resets (the server budget) does not
// borrow attempts from a genuine "not ready yet" placeholder (the paste
// budget), and vice versa. Every retry path must call the matching spend*
// method; a sleep-and-retry that spends from no budget can loop forever
// against an aggressive rate limiter.
type retryBudget struct {
	client int
	server int
	paste  int
}

const (
	maxClientRetries = 5   // 404
	maxServerRetries = 100 // 5xx, slow-down 403s, and transport errors
	maxPasteRetries  = 3   // "File is not ready for scraping yet" placeholder body
)

const (
	serverRetryWait    = 60 * time.Second
	clientRetryWait    = 60 * time.Second
	pasteRetryWait     = 60 * time.Second
	transportRetryWait = 0 * time.Second // TCP/SSL/connection errors retry immediately
)

func (b *retryBudget) spendClient() bool {
	b.client++
	return b.client <= maxClientRetries
}

func (b *retryBudget) spendServer() bool {
	b.server++
	return b.server <= maxServerRetries
}

func (b *retryBudget) spendPaste() bool {
	b.paste++
	return b.paste <= maxPasteRetries
}
