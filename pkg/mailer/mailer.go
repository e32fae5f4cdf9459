package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/relistco/relist-backend/pkg/config"
	"github.com/relistco/relist-backend/pkg/logger"
)

// PurchaseReceipt holds the fields rendered into a buyer receipt email.
type PurchaseReceipt struct {
	To           string
	ListingTitle string
	AmountCents  int64
	Currency     string
}

// ListingMessage holds a buyer-to-seller message about a listing.
type ListingMessage struct {
	To           string
	ReplyTo      string
	ListingTitle string
	Message      string
}

// Mailer sends transactional email. Implementations must be safe to call
// concurrently.
type Mailer interface {
	SendPurchaseReceipt(ctx context.Context, receipt PurchaseReceipt) error
	SendListingMessage(ctx context.Context, msg ListingMessage) error
}

type sendgridMailer struct {
	client *sendgrid.Client
	from   string
	logg   *logger.Logger
}

// New returns a SendGrid-backed mailer, or a no-op mailer when the API key
// is not configured so email never blocks local development.
func New(cfg config.SendgridConfig, logg *logger.Logger) Mailer {
	apiKey := strings.TrimSpace(cfg.APIKey)
	from := strings.TrimSpace(cfg.DefaultFrom)
	if apiKey == "" || from == "" {
		return &noopMailer{logg: logg}
	}
	return &sendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		logg:   logg,
	}
}

func (m *sendgridMailer) SendPurchaseReceipt(ctx context.Context, receipt PurchaseReceipt) error {
	if receipt.To == "" {
		return fmt.Errorf("receipt recipient is required")
	}

	amount := formatAmount(receipt.AmountCents, receipt.Currency)
	subject := fmt.Sprintf("Your purchase of %s", receipt.ListingTitle)
	text := fmt.Sprintf(
		"Thanks for your purchase!\n\nListing: %s\nTotal: %s\n\nThe seller has been notified and your order is confirmed.",
		receipt.ListingTitle, amount,
	)
	html := fmt.Sprintf(
		"<p>Thanks for your purchase!</p><p><strong>Listing:</strong> %s<br><strong>Total:</strong> %s</p><p>The seller has been notified and your order is confirmed.</p>",
		receipt.ListingTitle, amount,
	)

	return m.send(ctx, receipt.To, "", subject, text, html)
}

func (m *sendgridMailer) SendListingMessage(ctx context.Context, msg ListingMessage) error {
	if msg.To == "" {
		return fmt.Errorf("message recipient is required")
	}

	subject := fmt.Sprintf("New message about your listing: %s", msg.ListingTitle)
	text := fmt.Sprintf(
		"New message about your listing %q:\n\n%s\n\nReply directly to this email to respond to the buyer.",
		msg.ListingTitle, msg.Message,
	)
	html := fmt.Sprintf(
		"<p>New message about your listing <strong>%s</strong>:</p><blockquote>%s</blockquote><p>Reply directly to this email to respond to the buyer.</p>",
		msg.ListingTitle, msg.Message,
	)

	return m.send(ctx, msg.To, msg.ReplyTo, subject, text, html)
}

func (m *sendgridMailer) send(ctx context.Context, to, replyTo, subject, text, html string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("", m.from),
		subject,
		mail.NewEmail("", to),
		text,
		html,
	)
	if replyTo != "" {
		message.SetReplyTo(mail.NewEmail("", replyTo))
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	if m.logg != nil {
		m.logg.Info(ctx, fmt.Sprintf("email sent to %s", to))
	}
	return nil
}

type noopMailer struct {
	logg *logger.Logger
}

func (m *noopMailer) SendPurchaseReceipt(ctx context.Context, receipt PurchaseReceipt) error {
	if m.logg != nil {
		m.logg.Info(ctx, "mailer not configured, skipping purchase receipt")
	}
	return nil
}

func (m *noopMailer) SendListingMessage(ctx context.Context, msg ListingMessage) error {
	if m.logg != nil {
		m.logg.Info(ctx, "mailer not configured, skipping listing message")
	}
	return nil
}

func formatAmount(cents int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	return fmt.Sprintf("%s %d.%02d", cur, cents/100, cents%100)
}
