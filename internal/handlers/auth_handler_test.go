package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"projectboard/internal/auth"
	"projectboard/internal/config"
	"projectboard/internal/middleware"
	"projectboard/internal/models"
)

func register(e *testEnv, name, email, password string) AuthResponse {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": name, "email": email, "password": password, "confirmPassword": password,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[AuthResponse](e.t, w)
}

func TestRegister_StartsSession(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Alice", "email": "Alice@Example.com", "password": "password1", "confirmPassword": "password1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[AuthResponse](t, w)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice@example.com", resp.User.Email)

	var session string
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			session = ck.Value
		}
	}
	require.Equal(t, resp.Token, session)

	w = e.do(http.MethodGet, "/api/auth/session", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]map[string]any](t, w)
	require.Equal(t, resp.User.ID, got["user"]["id"])
}

func TestRegister_Rejections(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "password1", "confirmPassword": "password2",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "short", "confirmPassword": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	register(e, "Alice", "alice@example.com", "password1")
	w = e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Other", "email": "ALICE@example.com", "password": "password1", "confirmPassword": "password1",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "Email is already registered", errorOf(t, w))
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	register(e, "Alice", "alice@example.com", "password1")

	w := e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AuthResponse](t, w)
	claims, err := e.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)

	w = e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid email or password", errorOf(t, w))

	w = e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "nobody@example.com", "password": "password1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_RequiresToken(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/auth/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	ghost, err := e.tokens.GenerateToken("ghost", "Ghost", "ghost@example.com")
	require.NoError(t, err)
	w = e.do(http.MethodGet, "/api/auth/session", ghost, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordReset(t *testing.T) {
	e := newTestEnv(t)
	register(e, "Alice", "alice@example.com", "password1")

	w := e.do(http.MethodPost, "/api/auth/password/forgot", "", map[string]any{"email": "nobody@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Zero(t, e.h.otps.Pending())

	w = e.do(http.MethodPost, "/api/auth/password/forgot", "", map[string]any{"email": "alice@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 1, e.h.otps.Pending())

	// reissue to learn the code; it replaces the mailed one
	code, err := e.h.otps.Issue("alice@example.com")
	require.NoError(t, err)

	w = e.do(http.MethodPost, "/api/auth/password/verify", "", map[string]any{"email": "alice@example.com", "code": code})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/api/auth/password/reset", "", map[string]any{
		"email": "alice@example.com", "code": code, "password": "newpassword", "confirmPassword": "different1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/auth/password/reset", "", map[string]any{
		"email": "alice@example.com", "code": code, "password": "newpassword", "confirmPassword": "newpassword",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "newpassword"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/api/auth/password/reset", "", map[string]any{
		"email": "alice@example.com", "code": code, "password": "another12", "confirmPassword": "another12",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// identityProvider is an OAuth provider whose profile endpoint returns profile.
func identityProvider(t *testing.T, name, profile string) *auth.Provider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer"}`))
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(profile))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &auth.Provider{
		Name: name,
		Config: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/authorize",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		ProfileURL: srv.URL + "/profile",
	}
}

func withOAuth(e *testEnv, providers ...*auth.Provider) {
	o := auth.NewOAuth(config.Default().Auth)
	for _, p := range providers {
		o.Register(p)
	}
	e.h.oauth = o
	e.r.GET("/api/auth/oauth/:provider", e.h.OAuthStart)
	e.r.GET("/api/auth/oauth/:provider/callback", e.h.OAuthCallback)
}

// oauthLogin runs the consent redirect and the callback for provider.
func oauthLogin(e *testEnv, provider string) *httptest.ResponseRecorder {
	e.t.Helper()
	w := e.do(http.MethodGet, "/api/auth/oauth/"+provider, "", nil)
	require.Equal(e.t, http.StatusFound, w.Code, w.Body.String())
	consent, err := url.Parse(w.Header().Get("Location"))
	require.NoError(e.t, err)
	state := consent.Query().Get("state")
	return e.do(http.MethodGet, "/api/auth/oauth/"+provider+"/callback?code=abc&state="+url.QueryEscape(state), "", nil)
}

func sessionUser(e *testEnv, w *httptest.ResponseRecorder) string {
	e.t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			claims, err := e.tokens.ValidateToken(c.Value)
			require.NoError(e.t, err)
			return claims.UserID
		}
	}
	e.t.Fatal("no session cookie")
	return ""
}

func TestOAuth_NotConfigured(t *testing.T) {
	e := newTestEnv(t)
	e.r.GET("/api/auth/oauth/:provider", e.h.OAuthStart)
	w := e.do(http.MethodGet, "/api/auth/oauth/github", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOAuthCallback_RejectsBadState(t *testing.T) {
	e := newTestEnv(t)
	withOAuth(e, identityProvider(t, "github", `{"login":"octo","email":"octo@example.com"}`))

	w := e.do(http.MethodGet, "/api/auth/oauth/gitlab", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/auth/oauth/github/callback?code=abc&state=forged", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, auth.ErrInvalidState.Error(), errorOf(t, w))
	require.Empty(t, w.Result().Cookies())
}

func TestOAuthCallback_LinksExistingAccount(t *testing.T) {
	e := newTestEnv(t)
	e.token("u-1")
	withOAuth(e, identityProvider(t, "github", `{"login":"u1","email":"u-1@example.com"}`))

	w := oauthLogin(e, "github")
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(t, "/dashboard", w.Header().Get("Location"))
	require.Equal(t, "u-1", sessionUser(e, w))

	var count int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestOAuthCallback_CreatesAccount(t *testing.T) {
	e := newTestEnv(t)
	withOAuth(e, identityProvider(t, "google",
		`{"email":"new@example.com","email_verified":true,"name":"","picture":"https://img.example.com/n.png"}`))

	w := oauthLogin(e, "google")
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	id := sessionUser(e, w)

	var u models.User
	require.NoError(t, e.db.First(&u, "id = ?", id).Error)
	require.Equal(t, "new@example.com", u.Email)
	require.Equal(t, "new", u.Name)
	require.Equal(t, "google", u.Provider)
	require.Equal(t, "https://img.example.com/n.png", u.AvatarURL)
}

func TestOAuthCallback_UnverifiedEmailCannotLink(t *testing.T) {
	e := newTestEnv(t)
	e.token("u-1")
	withOAuth(e, identityProvider(t, "google", `{"email":"u-1@example.com","email_verified":false}`))

	w := oauthLogin(e, "google")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, auth.ErrNoEmail.Error(), errorOf(t, w))
	require.Empty(t, w.Result().Cookies())
}
