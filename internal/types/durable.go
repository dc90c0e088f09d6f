package types

import "time"

// DurableRecord is the row persisted for every archived pasty, uniquely keyed
// by (Site, ID). Field set matches the archive/email/persistence contract.
type DurableRecord struct {
	Site      string    `bson:"site"`
	ID        string    `bson:"id"`
	MD5       string    `bson:"md5"`
	URL       string    `bson:"url"`
	LocalPath string    `bson:"local_path"`
	Timestamp time.Time `bson:"timestamp"`
	Matches   string    `bson:"matches"`
}

// NewDurableRecord builds the durable row for a pasty that has already been
// archived (LocalPath set) and matched.
func NewDurableRecord(p *Pasty) DurableRecord {
	return DurableRecord{
		Site:      p.Site,
		ID:        p.ID,
		MD5:       p.MD5(),
		URL:       p.URL,
		LocalPath: p.LocalPath,
		Timestamp: p.FetchedAt,
		Matches:   Describe(p.Matches),
	}
}
