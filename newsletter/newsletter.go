// Package newsletter stores newsletter-only email signups. These live in
// their own table and never create a subscriber account.
package newsletter

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"agentsite/common"
	"agentsite/models"
	"agentsite/subscribers"
)

var ErrAlreadySignedUp = errors.New("email already signed up")

type Store struct {
	db     *gorm.DB
	tracer trace.Tracer
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("agentsite/newsletter"),
	}
}

// AddEmailSignup validates and stores email. A repeat returns
// ErrAlreadySignedUp.
func (s *Store) AddEmailSignup(ctx context.Context, email string) (uint, error) {
	const op = "newsletter.AddEmailSignup"
	ctx, span := s.tracer.Start(ctx, "newsletter.store.add")
	defer span.End()

	if err := subscribers.ValidateEmail(email); err != nil {
		return 0, err
	}

	signup := models.EmailSignup{Email: email}
	if err := s.db.WithContext(ctx).Create(&signup).Error; err != nil {
		if common.IsDuplicateKey(err) {
			return 0, fmt.Errorf("%s: %w", op, ErrAlreadySignedUp)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, &subscribers.StorageError{Op: op, Err: err}
	}
	return signup.ID, nil
}

// ListEmailSignups returns all signups, newest first.
func (s *Store) ListEmailSignups(ctx context.Context) ([]models.EmailSignup, error) {
	const op = "newsletter.ListEmailSignups"
	ctx, span := s.tracer.Start(ctx, "newsletter.store.list")
	defer span.End()

	signups := make([]models.EmailSignup, 0)
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&signups).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &subscribers.StorageError{Op: op, Err: err}
	}
	return signups, nil
}
