package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Config{
		JWTSecret: "test-secret",
		Issuer:    "aether-chat-test",
		TokenTTL:  time.Hour,
		OTPRPS:    100,
		OTPBurst:  100,
	}, store.NewRegistry(db.NewMemoryStore()), zap.NewNop())
}

func login(t *testing.T, s *Service) *Session {
	t.Helper()
	ctx := context.Background()
	ch, err := s.RequestOTP(ctx, "+1", "5551234567")
	require.NoError(t, err)
	sess, err := s.VerifyOTP(ctx, ch.ID, "123456")
	require.NoError(t, err)
	return sess
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name        string
		countryCode string
		phone       string
		field       string
		message     string
	}{
		{"missing country", "", "5551234567", "countryCode", "Please select a country code"},
		{"too short", "+1", "555123", "phone", "Phone number must be at least 10 digits"},
		{"too long", "+1", "5551234567890123", "phone", "Phone number must be at most 15 digits"},
		{"letters", "+1", "55512345ab", "phone", "Phone number must contain only digits"},
		{"valid", "+44", "5551234567", "", ""},
		{"valid max", "+44", "555123456789012", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhone(tt.countryCode, tt.phone)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}

func TestValidateOTP(t *testing.T) {
	assert.NoError(t, ValidateOTP("000000"))
	assert.NoError(t, ValidateOTP("987654"))

	var verr *ValidationError
	require.True(t, errors.As(ValidateOTP("12345"), &verr))
	assert.Equal(t, "OTP must be exactly 6 digits", verr.Message)
	require.True(t, errors.As(ValidateOTP("12a456"), &verr))
	assert.Equal(t, "OTP must contain only digits", verr.Message)
}

func TestRequestOTPMovesToOTPStep(t *testing.T) {
	s := newTestService(t)

	for _, phone := range []string{"5551234567", "447700900123", "123456789012345"} {
		ch, err := s.RequestOTP(context.Background(), "+1", phone)
		require.NoError(t, err)
		assert.Equal(t, StepOTP, ch.Step)
		assert.Equal(t, phone, ch.Phone)
		assert.NotEmpty(t, ch.ID)
	}
}

func TestAnySixDigitCodeLogsIn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"000000", "123456", "999999"} {
		ch, err := s.RequestOTP(ctx, "+91", "9876543210")
		require.NoError(t, err)

		sess, err := s.VerifyOTP(ctx, ch.ID, code)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, "9876543210", sess.User.Phone)
		assert.Equal(t, "+91", sess.User.CountryCode)

		claims, err := s.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, claims.UserID)
	}
}

func TestSamePhoneGetsSameUser(t *testing.T) {
	s := newTestService(t)
	first := login(t, s)
	second := login(t, s)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestChallengeIsSingleUse(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ch, err := s.RequestOTP(ctx, "+1", "5551234567")
	require.NoError(t, err)
	_, err = s.VerifyOTP(ctx, ch.ID, "123456")
	require.NoError(t, err)

	_, err = s.VerifyOTP(ctx, ch.ID, "123456")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeExpires(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }
	ch, err := s.RequestOTP(ctx, "+1", "5551234567")
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(s.cfg.ChallengeTTL + time.Second) }
	_, err = s.VerifyOTP(ctx, ch.ID, "123456")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestRequestOTPRateLimited(t *testing.T) {
	s := NewService(Config{JWTSecret: "x", OTPRPS: 0.001, OTPBurst: 1},
		store.NewRegistry(db.NewMemoryStore()), zap.NewNop())
	ctx := context.Background()

	_, err := s.RequestOTP(ctx, "+1", "5551234567")
	require.NoError(t, err)
	_, err = s.RequestOTP(ctx, "+1", "5551234567")
	assert.ErrorIs(t, err, ErrTooManyRequests)

	_, err = s.RequestOTP(ctx, "+1", "5559999999")
	assert.NoError(t, err)
}

func TestRequestOTPHonoursContext(t *testing.T) {
	s := NewService(Config{JWTSecret: "x", OTPDelay: time.Minute},
		store.NewRegistry(db.NewMemoryStore()), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RequestOTP(ctx, "+1", "5551234567")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	sess := login(t, s)

	claims, err := s.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, claims))

	_, err = s.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	fresh := login(t, s)
	_, err = s.Authenticate(ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestLogoutEndsEverySession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	laptop := login(t, s)
	phone := login(t, s)

	claims, err := s.Authenticate(ctx, phone.Token)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, claims))

	_, err = s.Authenticate(ctx, laptop.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	fresh := login(t, s)
	_, err = s.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, laptop.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)
	_, err = s.Authenticate(ctx, phone.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestCountryCodeAndPhoneDoNotRunTogether(t *testing.T) {
	s := NewService(Config{JWTSecret: "x", OTPRPS: 0.001, OTPBurst: 1},
		store.NewRegistry(db.NewMemoryStore()), zap.NewNop())
	ctx := context.Background()

	first, err := s.RequestOTP(ctx, "+1", "23456789012")
	require.NoError(t, err)
	second, err := s.RequestOTP(ctx, "+12", "3456789012")
	require.NoError(t, err, "pairs must not share a rate limit bucket")

	a, err := s.VerifyOTP(ctx, first.ID, "123456")
	require.NoError(t, err)
	b, err := s.VerifyOTP(ctx, second.ID, "123456")
	require.NoError(t, err)
	assert.NotEqual(t, a.User.ID, b.User.ID)
}

func TestConcurrentVerifyUsesChallengeOnce(t *testing.T) {
	s := NewService(Config{JWTSecret: "x", VerifyDelay: 50 * time.Millisecond, OTPRPS: 100, OTPBurst: 100},
		store.NewRegistry(db.NewMemoryStore()), zap.NewNop())
	ctx := context.Background()

	ch, err := s.RequestOTP(ctx, "+1", "5551234567")
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.VerifyOTP(ctx, ch.ID, "123456")
			errs <- err
		}()
	}

	var ok, notFound int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrChallengeNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notFound)
}

func TestCancelledVerifyKeepsChallenge(t *testing.T) {
	s := NewService(Config{JWTSecret: "x", VerifyDelay: time.Minute, OTPRPS: 100, OTPBurst: 100},
		store.NewRegistry(db.NewMemoryStore()), zap.NewNop())

	ch, err := s.RequestOTP(context.Background(), "+1", "5551234567")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.VerifyOTP(ctx, ch.ID, "123456")
	require.ErrorIs(t, err, context.Canceled)

	s.cfg.VerifyDelay = 0
	_, err = s.VerifyOTP(context.Background(), ch.ID, "123456")
	assert.NoError(t, err)
}

func TestExpiredToken(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, "test")
	now := time.Now()
	m.now = func() time.Time { return now }

	token, _, err := m.Issue(login(t, newTestService(t)).User, 0)
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestForeignTokenRejected(t *testing.T) {
	other := NewTokenManager("other-secret", time.Hour, "test")
	token, _, err := other.Issue(login(t, newTestService(t)).User, 0)
	require.NoError(t, err)

	_, err = newTestService(t).Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t)
	sess := login(t, s)

	var seen string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen = claims.UserID
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, sess.User.ID, seen)

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+sess.Token, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
