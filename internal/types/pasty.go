package types

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Pasty is a single paste downloaded from a site: its body plus everything
// discovered about it while it moved through the pipeline.
type Pasty struct {
	// Site is the name of the site this pasty was discovered on.
	Site string

	// ID is the site-assigned paste identifier, extracted from the index page.
	ID string

	// URL is the resolved download URL for this pasty's raw body.
	URL string

	// Body is the raw bytes fetched from URL. Empty until FetchBody is set.
	Body []byte

	// FetchedAt is when the body was successfully downloaded.
	FetchedAt time.Time

	// Matches holds every signature that fired against Body.
	Matches []MatchResult

	// Public is true iff any hit signature in Matches declared public: true.
	Public bool

	// LocalPath is the archive path Body was written to under the
	// signature-hit tree (archive.dir), set once the archive writer has run
	// for a matched pasty. Distinct from any copy written to the
	// archive-all tree, which is not recorded on the durable row.
	LocalPath string
}

// NewPasty creates a Pasty for a freshly discovered ID awaiting download.
func NewPasty(site, id, url string) *Pasty {
	return &Pasty{Site: site, ID: id, URL: url}
}

// MD5 returns the hex-encoded MD5 digest of the pasty body.
func (p *Pasty) MD5() string {
	sum := md5.Sum(p.Body)
	return hex.EncodeToString(sum[:])
}

// HasMatches reports whether any signature fired.
func (p *Pasty) HasMatches() bool {
	return len(p.Matches) > 0
}

// Key returns the (site, id) pair used as the unique key everywhere a pasty
// needs to be identified: the seen-set, the durable store, the archive path.
func (p *Pasty) Key() string {
	return p.Site + "/" + p.ID
}
