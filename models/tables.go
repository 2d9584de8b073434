package models

import "time"

type Subscriber struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null" json:"email"`
	PasswordHash *string   `gorm:"column:password_hash" json:"-"` // nil when signed up without a password
	CreatedAt    time.Time `gorm:"autoCreateTime;default:CURRENT_TIMESTAMP" json:"created_at"`
	Paid         int       `gorm:"not null;default:0" json:"paid"` // 0 or 1, set by the admin console only
}

// HasPassword reports whether the subscriber can log in.
func (s *Subscriber) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// EmailSignup is a newsletter-only signup. It never creates an account.
type EmailSignup struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// AllModels lists every table handled by RunMigrations.
func AllModels() []any {
	return []any{
		&Subscriber{},
		&EmailSignup{},
	}
}
