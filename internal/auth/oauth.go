package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"projectboard/internal/cache"
	"projectboard/internal/config"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrNoEmail         = errors.New("provider did not return an email address")
)

const stateTTL = 10 * time.Minute

// Profile is the subset of the provider account this system consumes.
type Profile struct {
	Provider  string
	Email     string
	Name      string
	AvatarURL string
}

// Provider is one configured OAuth identity provider. Providers named
// "github" read GitHub's user API; any other name is read as OpenID userinfo.
type Provider struct {
	Name       string
	Config     *oauth2.Config
	ProfileURL string
	// EmailsURL lists a GitHub account's emails when its profile hides them.
	EmailsURL string
	decode    func(ctx context.Context, p *Provider, client *http.Client, body []byte) (*Profile, error)
}

// OAuth keeps the enabled providers and the outstanding login states.
type OAuth struct {
	providers map[string]*Provider
	states    *cache.SimpleCache[string, string]
}

// NewOAuth enables every provider that has a client id configured.
func NewOAuth(cfg config.Auth) *OAuth {
	o := &OAuth{
		providers: make(map[string]*Provider),
		states:    cache.NewSimpleCache[string, string](cache.Options{ConcurrencySafe: true}),
	}
	base := strings.TrimRight(cfg.PublicURL, "/")
	if cfg.GitHub.ClientID != "" {
		o.Register(&Provider{
			Name: "github",
			Config: &oauth2.Config{
				ClientID:     cfg.GitHub.ClientID,
				ClientSecret: cfg.GitHub.ClientSecret,
				Endpoint:     endpoints.GitHub,
				RedirectURL:  base + "/api/auth/oauth/github/callback",
				Scopes:       []string{"read:user", "user:email"},
			},
			ProfileURL: "https://api.github.com/user",
			EmailsURL:  "https://api.github.com/user/emails",
		})
	}
	if cfg.Google.ClientID != "" {
		o.Register(&Provider{
			Name: "google",
			Config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  base + "/api/auth/oauth/google/callback",
				Scopes:       []string{"openid", "email", "profile"},
			},
			ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		})
	}
	return o
}

// Register adds or replaces a provider.
func (o *OAuth) Register(p *Provider) {
	if p.decode == nil {
		p.decode = decodeUserinfo
		if p.Name == "github" {
			p.decode = decodeGitHub
		}
	}
	o.providers[p.Name] = p
}

// Enabled reports whether provider is configured.
func (o *OAuth) Enabled(provider string) bool {
	_, ok := o.providers[provider]
	return ok
}

// AuthCodeURL starts a login with provider and returns the consent page URL.
func (o *OAuth) AuthCodeURL(provider string) (string, error) {
	p, ok := o.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := hex.EncodeToString(buf)
	o.states.Set(state, provider, stateTTL)
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange completes a login: it checks state, trades code for a token and
// fetches the account profile.
func (o *OAuth) Exchange(ctx context.Context, provider, state, code string) (*Profile, error) {
	p, ok := o.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	owner, ok := o.states.Get(state)
	if !ok || owner != provider {
		return nil, ErrInvalidState
	}
	o.states.Delete(state)

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	client := p.Config.Client(ctx, token)
	body, err := getJSON(ctx, client, p.ProfileURL)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	profile, err := p.decode(ctx, p, client, body)
	if err != nil {
		return nil, err
	}
	profile.Provider = provider
	if profile.Email == "" {
		return nil, ErrNoEmail
	}
	return profile, nil
}

// PurgeExpired drops abandoned login states.
func (o *OAuth) PurgeExpired() {
	o.states.PurgeExpired()
}

func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return body, nil
}

// decodeUserinfo reads an OpenID userinfo document. An email the provider
// has not verified is dropped, since accounts are linked by email.
func decodeUserinfo(_ context.Context, _ *Provider, _ *http.Client, body []byte) (*Profile, error) {
	var u struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if !u.EmailVerified {
		u.Email = ""
	}
	return &Profile{Email: u.Email, Name: u.Name, AvatarURL: u.Picture}, nil
}

func decodeGitHub(ctx context.Context, p *Provider, client *http.Client, body []byte) (*Profile, error) {
	var u struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	profile := &Profile{Email: u.Email, Name: name, AvatarURL: u.AvatarURL}
	if profile.Email != "" || p.EmailsURL == "" {
		return profile, nil
	}

	// private emails are only listed on /user/emails
	raw, err := getJSON(ctx, client, p.EmailsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch emails: %w", err)
	}
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil, fmt.Errorf("decode emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			profile.Email = e.Email
			break
		}
	}
	return profile, nil
}
