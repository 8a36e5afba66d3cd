package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"projectboard/internal/cache"
)

const (
	otpDigits      = 6
	otpMaxAttempts = 5
)

var (
	ErrOTPInvalid  = errors.New("invalid or expired code")
	ErrOTPAttempts = errors.New("too many attempts, request a new code")
)

type otpEntry struct {
	code     string
	attempts int
}

// OTPStore issues and verifies one-time password-reset codes keyed by email.
type OTPStore struct {
	mu    sync.Mutex
	codes *cache.SimpleCache[string, *otpEntry]
	ttl   time.Duration
	gen   func() (string, error)
}

// NewOTPStore returns a store whose codes expire after ttl.
func NewOTPStore(ttl time.Duration) *OTPStore {
	return &OTPStore{
		codes: cache.NewSimpleCache[string, *otpEntry](cache.Options{ConcurrencySafe: true}),
		ttl:   ttl,
		gen:   randomCode,
	}
}

func randomCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue creates a fresh code for email, replacing any outstanding one.
func (s *OTPStore) Issue(email string) (string, error) {
	code, err := s.gen()
	if err != nil {
		return "", err
	}
	s.codes.Set(normalizeEmail(email), &otpEntry{code: code}, s.ttl)
	return code, nil
}

// Verify checks code without consuming it.
func (s *OTPStore) Verify(email, code string) error {
	return s.check(normalizeEmail(email), code, false)
}

// Consume checks code and, on success, removes it so it cannot be reused.
func (s *OTPStore) Consume(email, code string) error {
	return s.check(normalizeEmail(email), code, true)
}

func (s *OTPStore) check(key, code string, consume bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.codes.Get(key)
	if !ok {
		return ErrOTPInvalid
	}
	if e.attempts >= otpMaxAttempts {
		s.codes.Delete(key)
		return ErrOTPAttempts
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		e.attempts++
		return ErrOTPInvalid
	}
	if consume {
		s.codes.Delete(key)
	}
	return nil
}

// PurgeExpired drops expired codes.
func (s *OTPStore) PurgeExpired() {
	s.codes.PurgeExpired()
}

// Pending returns how many unexpired codes are outstanding.
func (s *OTPStore) Pending() int {
	return s.codes.Len()
}
