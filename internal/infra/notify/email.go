package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"finedu-reconciliation/internal/config"
	"finedu-reconciliation/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.Notifier = (*EmailNotifier)(nil)

// EmailNotifier mails settlement and review notices to the operator
// mailbox over SMTP with STARTTLS.
type EmailNotifier struct {
	smtpHost string
	smtpPort string
	username string
	password string
	fromName string
	adminTo  string
	log      *zerolog.Logger
}

func NewEmailNotifier(cfg *config.NotifyConfig, log *zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		fromName: cfg.FromName,
		adminTo:  cfg.AdminTo,
		log:      log,
	}
}

func (n *EmailNotifier) PaymentSettled(ctx context.Context, userID, transactionID string, payments int, amount int64) error {
	subject := fmt.Sprintf("Paiement encaissé: %s", transactionID)
	body := fmt.Sprintf(
		"Transaction %s réglée pour l'utilisateur %s.\r\nLignes enregistrées: %d\r\nMontant: %d",
		transactionID, userID, payments, amount,
	)
	return n.send(ctx, subject, body)
}

func (n *EmailNotifier) OrderReviewed(ctx context.Context, userID, orderID, status string) error {
	subject := fmt.Sprintf("Commande %s: %s", orderID, status)
	body := fmt.Sprintf(
		"La commande %s de l'utilisateur %s est passée au statut %s.",
		orderID, userID, status,
	)
	return n.send(ctx, subject, body)
}

func (n *EmailNotifier) send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := fmt.Sprintf("%s <%s>", n.fromName, n.username)
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", n.adminTo) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := n.smtpHost + ":" + n.smtpPort
	auth := smtp.PlainAuth("", n.username, n.password, n.smtpHost)
	if err := smtp.SendMail(serverAddr, auth, n.username, []string{n.adminTo}, msg); err != nil {
		n.log.Warn().Err(err).Str("subject", subject).Msg("send mail failed")
		return fmt.Errorf("send mail failed: %w", err)
	}
	return nil
}

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier stands in when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) PaymentSettled(context.Context, string, string, int, int64) error { return nil }
func (NoopNotifier) OrderReviewed(context.Context, string, string, string) error      { return nil }
