package users

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	clockport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

// Service is the identity directory: it registers users, resolves them by key or email
// and verifies credentials.
type Service struct {
	repo   userrepo.Repository
	clk    clockport.Clock
	hasher *PasswordHasher
	log    *zap.Logger
}

func NewService(repo userrepo.Repository, clk clockport.Clock, hasher *PasswordHasher, log *zap.Logger) *Service {
	if hasher == nil {
		hasher = NewPasswordHasher(DefaultBcryptCost)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, clk: clk, hasher: hasher, log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	key := domain.UserKey(strings.ToUpper(strings.TrimSpace(in.Key)))
	if !domain.ValidUserKey(key) {
		return domain.User{}, validationError("key", "must be eight digits followed by a control letter")
	}
	first := domain.NormalizeHumanName(in.FirstName)
	if n := utf8.RuneCountInString(first); n < 2 || n > 16 {
		return domain.User{}, validationError("firstName", "must be between 2 and 16 characters")
	}
	last := domain.NormalizeHumanName(in.LastName)
	if n := utf8.RuneCountInString(last); n < 2 || n > 64 {
		return domain.User{}, validationError("lastName", "must be between 2 and 64 characters")
	}
	email := strings.TrimSpace(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.User{}, validationError("email", err.Error())
	}
	phone := strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	if !domain.ValidPhone(phone) {
		return domain.User{}, validationError("phone", "must be a valid Spanish phone number")
	}
	now := s.clk.Now()
	if in.Birthdate.IsZero() || !domain.IsAdult(in.Birthdate, now) {
		return domain.User{}, validationError("birthdate", "you need to be over 18 years old")
	}
	if in.Password == "" {
		return domain.User{}, validationError("password", "must be non-empty")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return domain.User{}, validationError("password", err.Error())
		}
		return domain.User{}, err
	}

	u := domain.User{
		Key:          key,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Phone:        phone,
		Birthdate:    in.Birthdate.UTC(),
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrAlreadyExists) || errors.Is(err, userrepo.ErrEmailInUse) {
			return domain.User{}, &Error{
				Status:  http.StatusConflict,
				Code:    "USER_ALREADY_EXISTS",
				Message: "a user with that key or email already exists",
			}
		}
		return domain.User{}, err
	}
	s.log.Info("user registered", zap.String("user_key", string(u.Key)))
	return u, nil
}

// FindByKey resolves a user by identity key.
func (s *Service) FindByKey(ctx context.Context, key domain.UserKey) (domain.User, error) {
	u, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, fromDomain(domain.ErrUserNotFound)
		}
		return domain.User{}, err
	}
	return u, nil
}

// FindByEmail resolves a user by email (case-insensitive).
func (s *Service) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, fromDomain(domain.ErrUserNotFound)
		}
		return domain.User{}, err
	}
	return u, nil
}

// VerifyCredential checks plaintext against the user's stored credential.
func (s *Service) VerifyCredential(u domain.User, plaintext string) bool {
	if u.PasswordHash == "" || plaintext == "" {
		return false
	}
	return s.hasher.Matches(u.PasswordHash, plaintext)
}

// Authenticate resolves the user by email and verifies the password.
// Unknown emails and wrong passwords are indistinguishable (LOGIN_ERROR).
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, fromDomain(domain.ErrLogin)
		}
		return domain.User{}, err
	}
	if !s.VerifyCredential(u, password) {
		return domain.User{}, fromDomain(domain.ErrLogin)
	}
	return u, nil
}

// Summaries loads the public projection of the given users keyed by identity.
func (s *Service) Summaries(ctx context.Context, keys []domain.UserKey) (map[domain.UserKey]domain.UserSummary, error) {
	out := make(map[domain.UserKey]domain.UserSummary, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	us, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	for _, u := range us {
		out[u.Key] = u.Summary()
	}
	return out, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

// GetProfile returns the caller's own record after verifying the credential.
func (s *Service) GetProfile(ctx context.Context, email, password string) (domain.User, error) {
	return s.Authenticate(ctx, email, password)
}
