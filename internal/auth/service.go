// ABOUTME: Account service coordinating the user store, CA enrollment, and JWTs
// ABOUTME: Registration keeps the relational row and the wallet identity in step

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetlink/ledger-gateway/internal/store"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// Account errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
)

// Usernames double as wallet labels and CA enrollment IDs, so the charset is
// restricted and the wallet's reserved "_" prefix is excluded.
var usernamePattern = regexp.MustCompile(`^[a-z0-9.-][a-z0-9._-]{2,63}$`)

// Enroller issues ledger identities for usernames. *ca.Client satisfies it.
type Enroller interface {
	EnrollAdmin(ctx context.Context, w *wallet.Wallet, mspID, adminID, adminSecret string) error
	RegisterAndEnroll(ctx context.Context, w *wallet.Wallet, mspID, username, affiliation string) error
}

// EnrollmentConfig carries the CA coordinates the registration flow needs.
type EnrollmentConfig struct {
	MSPID       string
	AdminID     string
	AdminSecret string
	Affiliation string
}

// RegisterRequest carries the fields for a new account.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Service implements registration, login, and profile lookup.
type Service struct {
	users      store.UserStore
	wallet     *wallet.Wallet
	enroller   Enroller
	tokens     *JWTVerifier
	enrollment EnrollmentConfig
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewService creates the account service.
func NewService(users store.UserStore, w *wallet.Wallet, enroller Enroller, tokens *JWTVerifier, enrollment EnrollmentConfig, tokenTTL time.Duration) *Service {
	return &Service{
		users:      users,
		wallet:     w,
		enroller:   enroller,
		tokens:     tokens,
		enrollment: enrollment,
		tokenTTL:   tokenTTL,
		logger:     slog.Default().With("component", "auth"),
	}
}

// Register creates a platform user and enrolls a matching ledger identity.
// The relational insert goes first because it is the cheap step to undo: if
// enrollment fails afterwards, the row is deleted so the username can retry.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*store.User, error) {
	if !usernamePattern.MatchString(req.Username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, req.Username)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.enroll(ctx, req.Username); err != nil {
		if delErr := s.users.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.Error("rollback of user after failed enrollment also failed",
				"username", req.Username, "error", delErr)
		}
		return nil, fmt.Errorf("enrolling ledger identity for %s: %w", req.Username, err)
	}

	s.logger.Info("registered user", "username", req.Username)
	return user, nil
}

// enroll bootstraps the admin identity if needed, then issues the user's
// ledger identity under its authority.
func (s *Service) enroll(ctx context.Context, username string) error {
	if err := s.enroller.EnrollAdmin(ctx, s.wallet, s.enrollment.MSPID, s.enrollment.AdminID, s.enrollment.AdminSecret); err != nil {
		return err
	}
	return s.enroller.RegisterAndEnroll(ctx, s.wallet, s.enrollment.MSPID, username, s.enrollment.Affiliation)
}

// Login checks the password and issues a bearer token. Unknown usernames and
// wrong passwords collapse into the same error so the endpoint does not leak
// which usernames exist.
func (s *Service) Login(ctx context.Context, username, password string) (token string, err error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err = s.tokens.Generate(username, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	s.logger.Info("user logged in", "username", username)
	return token, nil
}

// Profile returns the stored user record for username.
func (s *Service) Profile(ctx context.Context, username string) (*store.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}
