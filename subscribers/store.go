package subscribers

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"agentsite/common"
	"agentsite/models"
)

// Store persists subscriber rows. Uniqueness of email is enforced by the
// table's UNIQUE constraint, never by a lookup before insert.
type Store struct {
	db     *gorm.DB
	tracer trace.Tracer
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("agentsite/subscribers"),
	}
}

func (s *Store) CreateSubscriber(ctx context.Context, email string, passwordHash *string) (uint, error) {
	const op = "subscribers.CreateSubscriber"
	ctx, span := s.tracer.Start(ctx, "subscribers.store.create",
		trace.WithAttributes(attribute.Bool("subscriber.has_password", passwordHash != nil)),
	)
	defer span.End()

	if email == "" {
		return 0, &ValidationError{Field: "email", Reason: "Email is required"}
	}

	sub := models.Subscriber{
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if common.IsDuplicateKey(err) {
			span.SetAttributes(attribute.Bool("subscriber.duplicate", true))
			return 0, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		recordError(span, err)
		return 0, &StorageError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int64("subscriber.id", int64(sub.ID)))
	return sub.ID, nil
}

func (s *Store) FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	const op = "subscribers.FindSubscriberByEmail"
	ctx, span := s.tracer.Start(ctx, "subscribers.store.find_by_email")
	defer span.End()

	var sub models.Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		recordError(span, err)
		return nil, &StorageError{Op: op, Err: err}
	}
	return &sub, nil
}

// ListSubscribers returns every subscriber, newest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	const op = "subscribers.ListSubscribers"
	ctx, span := s.tracer.Start(ctx, "subscribers.store.list")
	defer span.End()

	subs := make([]models.Subscriber, 0)
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	if err != nil {
		recordError(span, err)
		return nil, &StorageError{Op: op, Err: err}
	}

	span.SetAttributes(attribute.Int("subscribers.count", len(subs)))
	return subs, nil
}

// SetPaidStatus is idempotent: writing the current value again succeeds.
func (s *Store) SetPaidStatus(ctx context.Context, email string, paid bool) error {
	const op = "subscribers.SetPaidStatus"
	ctx, span := s.tracer.Start(ctx, "subscribers.store.set_paid",
		trace.WithAttributes(attribute.Bool("subscriber.paid", paid)),
	)
	defer span.End()

	value := 0
	if paid {
		value = 1
	}

	// SQLite counts every matched row as changed, so RowsAffected is 0 only
	// when the email is unknown.
	result := s.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("email = ?", email).
		Update("paid", value)
	if result.Error != nil {
		recordError(span, result.Error)
		return &StorageError{Op: op, Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
