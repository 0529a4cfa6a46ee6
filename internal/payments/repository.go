package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, session *PaymentSession) error
	GetByOrderCode(ctx context.Context, orderCode int64) (*PaymentSession, error)
	GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*PaymentSession, error)
	MarkPaid(ctx context.Context, session *PaymentSession, transactionRef string, paidAt time.Time) error
	MarkStatus(ctx context.Context, session *PaymentSession, status SessionStatus) error
	SupersedeActive(ctx context.Context, bookingID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *PaymentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) GetByOrderCode(ctx context.Context, orderCode int64) (*PaymentSession, error) {
	var session PaymentSession
	err := r.db.WithContext(ctx).Where("order_code = ?", orderCode).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*PaymentSession, error) {
	var session PaymentSession
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, SessionPending).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) MarkPaid(ctx context.Context, session *PaymentSession, transactionRef string, paidAt time.Time) error {
	session.Status = SessionPaid
	session.TransactionRef = transactionRef
	session.PaidAt = &paidAt
	return r.db.WithContext(ctx).Model(session).Updates(map[string]interface{}{
		"status":          SessionPaid,
		"transaction_ref": transactionRef,
		"paid_at":         paidAt,
	}).Error
}

func (r *repository) MarkStatus(ctx context.Context, session *PaymentSession, status SessionStatus) error {
	session.Status = status
	return r.db.WithContext(ctx).Model(session).Update("status", status).Error
}

// SupersedeActive cancels any still-pending session for a booking before a
// new one is created.
func (r *repository) SupersedeActive(ctx context.Context, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&PaymentSession{}).
		Where("booking_id = ? AND status = ?", bookingID, SessionPending).
		Update("status", SessionCancelled).Error
}
