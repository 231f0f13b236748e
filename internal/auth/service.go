package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/metrics"
	"github.com/RichardoC/aether-chat/internal/models"
	"github.com/RichardoC/aether-chat/internal/store"
)

var (
	ErrChallengeNotFound = errors.New("verification challenge not found or expired")
	ErrTooManyRequests   = errors.New("too many OTP requests")
)

// userNamespace derives stable user ids from phone numbers so a returning
// user gets their chatrooms back.
var userNamespace = uuid.MustParse("6f1d3c1e-8a4b-4f59-9d2e-0c7e5b1a2f44")

type Step string

const (
	StepPhone Step = "phone"
	StepOTP   Step = "otp"
)

type Config struct {
	JWTSecret    string
	Issuer       string
	TokenTTL     time.Duration
	OTPDelay     time.Duration
	VerifyDelay  time.Duration
	ChallengeTTL time.Duration
	OTPRPS       float64
	OTPBurst     int
}

// Challenge is an OTP sent to a phone number and waiting for its code.
type Challenge struct {
	ID          string    `json:"challengeId"`
	CountryCode string    `json:"countryCode"`
	Phone       string    `json:"phone"`
	Step        Step      `json:"step"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type Service struct {
	cfg      Config
	tokens   *TokenManager
	limiter  *limiterPool
	registry *store.Registry
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	challenges map[string]*Challenge
}

func NewService(cfg Config, registry *store.Registry, logger *zap.Logger) *Service {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 10 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		cfg:        cfg,
		tokens:     NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, cfg.Issuer),
		limiter:    newLimiterPool(cfg.OTPRPS, cfg.OTPBurst),
		registry:   registry,
		logger:     logger,
		now:        time.Now,
		challenges: make(map[string]*Challenge),
	}
}

func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// phoneKey identifies a phone number across countries. The separator keeps
// "+1"/"23..." and "+12"/"3..." apart.
func phoneKey(countryCode, phone string) string {
	return countryCode + ":" + phone
}

// sleep simulates network latency and stops early when ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RequestOTP is the phone step of the login wizard. A well-formed number
// always advances to the OTP step; no message is actually sent.
func (s *Service) RequestOTP(ctx context.Context, countryCode, phone string) (*Challenge, error) {
	if err := ValidatePhone(countryCode, phone); err != nil {
		return nil, err
	}
	if !s.limiter.Allow(phoneKey(countryCode, phone)) {
		return nil, ErrTooManyRequests
	}

	if err := sleep(ctx, s.cfg.OTPDelay); err != nil {
		return nil, err
	}

	ch := &Challenge{
		ID:          uuid.NewString(),
		CountryCode: countryCode,
		Phone:       phone,
		Step:        StepOTP,
		ExpiresAt:   s.now().Add(s.cfg.ChallengeTTL),
	}

	s.mu.Lock()
	s.pruneLocked()
	s.challenges[ch.ID] = ch
	s.mu.Unlock()

	metrics.OTPRequests.Inc()
	s.logger.Info("OTP sent",
		zap.String("challenge_id", ch.ID),
		zap.String("country_code", countryCode))

	out := *ch
	return &out, nil
}

func (s *Service) pruneLocked() {
	now := s.now()
	for id, ch := range s.challenges {
		if now.After(ch.ExpiresAt) {
			delete(s.challenges, id)
		}
	}
}

// takeChallenge removes the challenge so only one verification can use it.
func (s *Service) takeChallenge(id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.challenges, id)
	return ch, nil
}

// restoreChallenge puts back a challenge whose verification was cancelled.
func (s *Service) restoreChallenge(ch *Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Before(ch.ExpiresAt) {
		s.challenges[ch.ID] = ch
	}
}

// VerifyOTP is the code step. Any syntactically valid 6-digit code is
// accepted.
func (s *Service) VerifyOTP(ctx context.Context, challengeID, code string) (*Session, error) {
	if err := ValidateOTP(code); err != nil {
		return nil, err
	}
	ch, err := s.takeChallenge(challengeID)
	if err != nil {
		return nil, err
	}

	if err := sleep(ctx, s.cfg.VerifyDelay); err != nil {
		s.restoreChallenge(ch)
		return nil, err
	}

	user := models.User{
		ID:          uuid.NewSHA1(userNamespace, []byte(phoneKey(ch.CountryCode, ch.Phone))).String(),
		Phone:       ch.Phone,
		CountryCode: ch.CountryCode,
	}

	us, err := s.registry.For(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	generation, err := us.Auth.Login(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, exp, err := s.tokens.Issue(user, generation)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	metrics.Logins.Inc()
	s.logger.Info("login successful", zap.String("user_id", user.ID))

	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// Authenticate resolves a bearer token to its claims. Tokens issued before
// the user's last logout are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	us, err := s.registry.For(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !us.Auth.Valid(claims.Generation) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	s.tokens.Revoke(claims)

	us, err := s.registry.For(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if err := us.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}
	s.logger.Info("logged out", zap.String("user_id", claims.UserID))
	return nil
}
