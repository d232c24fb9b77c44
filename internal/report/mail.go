package report

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"whatson/internal/ingest"

	"github.com/jordan-wright/email"
)

type MailConfig struct {
	Server   string
	Port     int
	From     string
	Password string
	To       []string
}

func (c MailConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

func mailBody(summary ingest.RunSummary) string {
	failed := summary.Failed()

	var b strings.Builder
	fmt.Fprintf(&b, "Ingest run %s finished at %s.\n\n", summary.RunID, summary.FinishedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "%d of %d venues failed:\n\n", len(failed), len(summary.Results))
	for _, r := range failed {
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", r.VenueID, r.Stage, r.ErrorKind, r.Error)
	}
	if summary.Cancelled {
		b.WriteString("\nThe run was cancelled before every venue finished.\n")
	}
	return b.String()
}

// Mail notifies the configured recipients about failed venues. It does
// nothing when every venue succeeded.
func Mail(cfg MailConfig, summary ingest.RunSummary) error {
	failed := summary.Failed()
	if len(failed) == 0 {
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("whatson <%s>", cfg.From)
	mail.To = cfg.To
	mail.Subject = fmt.Sprintf("whatson ingest: %d venue(s) failed", len(failed))
	mail.Text = []byte(mailBody(summary))

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send report to %s: %w", addr, err)
	}
	return nil
}
