package pipeline

import (
	"fmt"
	"net/http"

	"github.com/david/samdaily/internal/config"
	"github.com/david/samdaily/internal/db"
	"github.com/david/samdaily/internal/mail"
	"github.com/david/samdaily/internal/sam"
)

// NewRunner assembles a Runner from validated config. Store may be nil.
func NewRunner(cfg *config.Config, store *db.Store) (*Runner, error) {
	contract, err := sam.ContractFor(cfg.APIVersion)
	if err != nil {
		return nil, err
	}

	client := sam.NewClient(contract, cfg.SAMAPIKey,
		sam.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		sam.WithMaxRetries(cfg.MaxRetries),
	)

	var mailer mail.Mailer
	switch cfg.MailTransport {
	case "api":
		mailer = mail.NewAPISender(cfg.MailAPIURL, cfg.MailAPIToken)
	case "smtp":
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}

	registry, err := LoadRegistry(cfg.SearchesFile)
	if err != nil {
		return nil, err
	}

	return &Runner{
		Fetcher:    client,
		Mailer:     mailer,
		Store:      store,
		Registry:   registry,
		From:       cfg.FromAddress,
		Recipients: cfg.RecipientList(),
		Format:     cfg.AttachmentFormat,
	}, nil
}
