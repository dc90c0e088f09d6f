// Package alert implements the Alerter: sending one email per pasty whose
// body matched at least one signature.
package alert

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/pastewatch/pastewatch/internal/types"
)

// Alerter composes and sends match notification emails over SMTP.
type Alerter struct {
	dialer  *mail.Dialer
	from    string
	to      []string
	subject string
	logger  *slog.Logger
}

// New builds an Alerter. username/password may be empty for an
// unauthenticated relay.
func New(server string, port int, username, password, from string, to []string, subject string, logger *slog.Logger) *Alerter {
	dialer := mail.NewDialer(server, port, username, password)
	if subject == "" {
		subject = "pastewatch alert"
	}
	return &Alerter{
		dialer:  dialer,
		from:    from,
		to:      to,
		subject: subject,
		logger:  logger.With("component", "alerter"),
	}
}

// Send composes and delivers an alert for a matched pasty. Recipients are
// the configured global address plus every extra address named in a hit
// signature's to field.
func (a *Alerter) Send(p *types.Pasty) error {
	recipients := a.recipients(p)
	if len(recipients) == 0 {
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", a.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", fmt.Sprintf("%s: %s", a.subject, types.Describe(p.Matches)))
	m.SetBody("text/plain", a.body(p))

	if err := a.dialer.DialAndSend(m); err != nil {
		return &types.AlertError{Site: p.Site, ID: p.ID, Err: err}
	}

	a.logger.Info("alert sent", "site", p.Site, "id", p.ID, "recipients", len(recipients), "matches", len(p.Matches))
	return nil
}

// recipients merges the configured global address list with every extra
// address named on a hit signature, de-duplicated.
func (a *Alerter) recipients(p *types.Pasty) []string {
	seen := make(map[string]bool, len(a.to))
	var out []string
	add := func(addr string) {
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	for _, addr := range a.to {
		add(addr)
	}
	for _, m := range p.Matches {
		for _, addr := range m.To {
			add(addr)
		}
	}
	return out
}

// body composes the alert body: site, original URL, the hit description
// list, and the full pasty content inline. The inline content is not
// redacted; the "matches" line names only the signatures that fired.
func (a *Alerter) body(p *types.Pasty) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n", p.Site)
	fmt.Fprintf(&b, "ID: %s\n", p.ID)
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	fmt.Fprintf(&b, "Fetched: %s\n", p.FetchedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "MD5: %s\n", p.MD5())
	fmt.Fprintf(&b, "Matches: %s\n", types.Describe(p.Matches))
	fmt.Fprintf(&b, "Public: %t\n", p.Public)
	if p.LocalPath != "" {
		fmt.Fprintf(&b, "Archived at: %s\n", p.LocalPath)
	}
	b.WriteString("\n--- pasty content ---\n")
	b.Write(p.Body)
	return b.String()
}
