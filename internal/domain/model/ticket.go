package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"finedu-reconciliation/internal/domain"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "en_cours"
	TicketStatusInAnalysis TicketStatus = "en_analyse"
	TicketStatusDone       TicketStatus = "terminee"
)

// Ticket is one unit of fulfillable analysis work. Quantity N on a paid
// analysis line yields N tickets. Tickets are never deleted automatically,
// even when the triggering payment is later removed: the service work may
// already have started.
type Ticket struct {
	Code        string       `json:"code"`
	UserID      string       `json:"user_id"`
	ClientName  string       `json:"client_name"`
	ClientEmail string       `json:"client_email"`
	Status      TicketStatus `json:"status"`
	Progress    int          `json:"progress"`           // percent, 0-100
	Channel     string       `json:"channel"`            // payment channel label
	IdemKey     string       `json:"idem_key,omitempty"` // caller idempotency key, if supplied
	CreatedAt   time.Time    `json:"created_at"`
}

// NewTicketCode mints a sortable analysis code, e.g. AN-01J8ZK....
func NewTicketCode() string {
	return "AN-" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func NewTicket(userID, clientName, clientEmail, channel string) (*Ticket, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Ticket{
		Code:        NewTicketCode(),
		UserID:      userID,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		Status:      TicketStatusOpen,
		Progress:    0,
		Channel:     channel,
		CreatedAt:   time.Now(),
	}, nil
}
