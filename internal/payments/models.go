package payments

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionPaid      SessionStatus = "PAID"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// PaymentSession is one checkout attempt against the gateway. A booking
// has at most one active session at a time; retries supersede the old one.
type PaymentSession struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `json:"booking_id" gorm:"type:uuid;not null;index"`

	OrderCode     int64         `json:"order_code" gorm:"uniqueIndex;not null"`
	Amount        int64         `json:"amount" gorm:"not null"`
	Status        SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	CheckoutURL   string        `json:"checkout_url"`
	QRCode        string        `json:"qr_code"`
	GatewayLinkID string        `json:"gateway_link_id"`

	TransactionRef string     `json:"transaction_ref,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentSession) TableName() string {
	return "payment_sessions"
}

func (s *PaymentSession) Active() bool {
	return s.Status == SessionPending
}
