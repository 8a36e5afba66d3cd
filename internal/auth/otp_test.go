package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOTP_IssueVerifyConsume(t *testing.T) {
	s := NewOTPStore(time.Minute)
	code, err := s.Issue("Alice@Example.com ")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, s.Verify("alice@example.com", code))
	// verify does not consume
	require.NoError(t, s.Consume("alice@example.com", code))
	require.ErrorIs(t, s.Consume("alice@example.com", code), ErrOTPInvalid)
}

func TestOTP_WrongCodeAndAttemptLimit(t *testing.T) {
	s := NewOTPStore(time.Minute)
	s.gen = func() (string, error) { return "123456", nil }
	_, err := s.Issue("bob@example.com")
	require.NoError(t, err)

	for i := 0; i < otpMaxAttempts; i++ {
		require.ErrorIs(t, s.Verify("bob@example.com", "000000"), ErrOTPInvalid)
	}
	require.ErrorIs(t, s.Verify("bob@example.com", "123456"), ErrOTPAttempts)
	require.ErrorIs(t, s.Verify("bob@example.com", "123456"), ErrOTPInvalid)
}

func TestOTP_ReissueReplacesCode(t *testing.T) {
	s := NewOTPStore(time.Minute)
	codes := []string{"111111", "222222"}
	s.gen = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	_, _ = s.Issue("carol@example.com")
	_, _ = s.Issue("carol@example.com")

	require.ErrorIs(t, s.Verify("carol@example.com", "111111"), ErrOTPInvalid)
	require.NoError(t, s.Verify("carol@example.com", "222222"))
	require.Equal(t, 1, s.Pending())
}

func TestPasswordHelpers(t *testing.T) {
	require.ErrorIs(t, ValidatePassword("short", "short"), ErrPasswordTooShort)
	require.ErrorIs(t, ValidatePassword("long-enough", "long-enougH"), ErrPasswordMismatch)
	require.NoError(t, ValidatePassword("long-enough", "long-enough"))

	hash, err := HashPassword("long-enough")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "long-enough"))
	require.False(t, CheckPassword(hash, "wrong"))
	require.False(t, CheckPassword("", "long-enough"))
}

func TestOAuth_DisabledProviders(t *testing.T) {
	o := NewOAuth(testManagerConfig())
	require.False(t, o.Enabled("github"))
	_, err := o.AuthCodeURL("github")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOAuth_StateIsSingleUse(t *testing.T) {
	cfg := testManagerConfig()
	cfg.GitHub.ClientID = "client"
	cfg.GitHub.ClientSecret = "secret"
	o := NewOAuth(cfg)
	require.True(t, o.Enabled("github"))

	url, err := o.AuthCodeURL("github")
	require.NoError(t, err)
	require.Contains(t, url, "client_id=client")

	_, err = o.Exchange(t.Context(), "github", "forged-state", "code")
	require.ErrorIs(t, err, ErrInvalidState)
}
