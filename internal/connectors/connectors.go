package connectors

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"nfce/internal"
	"nfce/internal/config"
	gmailconnector "nfce/internal/connectors/gmail"
	imapconnector "nfce/internal/connectors/imap"
)

// MailConnector pulls raw messages that may carry receipts as attachments.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

func NewMailConnector(provider string, cfg config.Config) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		c, err := gmailconnector.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "imap":
		c, err := imapconnector.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, eris.Errorf("unsupported mail provider: %s", provider)
	}
}
