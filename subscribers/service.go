package subscribers

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"agentsite/models"
)

// Repository is the storage the signup and login flows run against.
type Repository interface {
	CreateSubscriber(ctx context.Context, email string, passwordHash *string) (uint, error)
	FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	SetPaidStatus(ctx context.Context, email string, paid bool) error
}

type SignupOutcome int

const (
	SignupCreated SignupOutcome = iota + 1
	// SignupAlreadyRegistered is not an error: the caller should switch the
	// user to the login path.
	SignupAlreadyRegistered
)

func (o SignupOutcome) String() string {
	switch o {
	case SignupCreated:
		return "created"
	case SignupAlreadyRegistered:
		return "already_registered"
	default:
		return "unknown"
	}
}

type SignupResult struct {
	Outcome SignupOutcome
	ID      uint // set only for SignupCreated
}

type Service struct {
	repo       Repository
	bcryptCost int
}

func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost}
}

// Signup registers email with an optional password. An empty password
// leaves the account without a hash, so it cannot log in.
func (s *Service) Signup(ctx context.Context, email, password string) (SignupResult, error) {
	if err := ValidateEmail(email); err != nil {
		return SignupResult{}, err
	}

	var passwordHash *string
	if password != "" {
		hash, err := HashPassword(password, s.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return SignupResult{}, &ValidationError{Field: "password", Reason: "Password is too long"}
		}
		if err != nil {
			return SignupResult{}, err
		}
		passwordHash = &hash
	}

	id, err := s.repo.CreateSubscriber(ctx, email, passwordHash)
	if errors.Is(err, ErrDuplicateEmail) {
		return SignupResult{Outcome: SignupAlreadyRegistered}, nil
	}
	if err != nil {
		return SignupResult{}, err
	}

	return SignupResult{Outcome: SignupCreated, ID: id}, nil
}

// Login verifies the credentials. Unknown email, missing hash and wrong
// password all yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Subscriber, error) {
	if email == "" || password == "" {
		return nil, &ValidationError{Field: "credentials", Reason: "Email and password are required"}
	}

	sub, err := s.repo.FindSubscriberByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if sub == nil || !sub.HasPassword() {
		_ = CheckPassword(dummyHash(), password)
		return nil, ErrInvalidCredentials
	}

	if err := CheckPassword(*sub.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return sub, nil
}

// Lookup returns the current row for an already authenticated subscriber.
func (s *Service) Lookup(ctx context.Context, email string) (*models.Subscriber, error) {
	return s.repo.FindSubscriberByEmail(ctx, email)
}
