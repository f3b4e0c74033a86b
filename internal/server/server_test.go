package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/devtoolbox/internal/config"
	"github.com/sakif/devtoolbox/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := &config.Config{
		Port:          0,
		DBPath:        ":memory:",
		BaseURL:       "https://devtoolbox.test",
		JWTSecret:     "test-secret-at-least-16-chars",
		RatePerSecond: 1000, // keep the limiter out of the way
		RateBurst:     1000,
	}

	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.store.Close() })
	return srv
}

// do runs one request through the full middleware chain and decodes the
// JSON response body into out (when out is non-nil).
func do(t *testing.T, srv *Server, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if out != nil && rr.Code < 300 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr
}

// signUpAndIn registers an account and returns its bearer token.
func signUpAndIn(t *testing.T, srv *Server, email string) string {
	t.Helper()

	rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
		"name":     "Test User",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var signin struct {
		AccessToken string `json:"accessToken"`
	}
	rr = do(t, srv, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
	}, &signin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEmpty(t, signin.AccessToken)
	return signin.AccessToken
}

type snippetEnvelope struct {
	Success bool `json:"success"`
	Snippet struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		Type     string `json:"type"`
		IsPublic bool   `json:"isPublic"`
		OwnerID  string `json:"userId"`
		ShareURL string `json:"shareUrl"`
	} `json:"snippet"`
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var health struct {
		Status string `json:"status"`
	}
	rr := do(t, srv, http.MethodGet, "/health", "", nil, &health)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, rr.Body.String(), "timestamp")
}

func TestSignupValidation(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "dev@example.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRequiresFields(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/snippets", "", map[string]any{
		"title": "no content or type",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnonymousCreateIsLocalOnlyPrivate(t *testing.T) {
	srv := newTestServer(t)

	// Anonymous private create succeeds with no owner.
	var env snippetEnvelope
	rr := do(t, srv, http.MethodPost, "/api/snippets", "", map[string]any{
		"title":   "scratch",
		"content": "x",
		"type":    model.TypeCustom,
	}, &env)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Empty(t, env.Snippet.OwnerID)
	assert.Empty(t, env.Snippet.ShareURL)

	// Anonymous public create is rejected: it would be undeletable.
	rr = do(t, srv, http.MethodPost, "/api/snippets", "", map[string]any{
		"title":    "Email regex",
		"content":  "^[a-z]+@",
		"type":     model.TypeRegex,
		"isPublic": true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
}

func TestInvalidCredentialDegradesToAnonymous(t *testing.T) {
	srv := newTestServer(t)

	var env snippetEnvelope
	rr := do(t, srv, http.MethodPost, "/api/snippets", "not-a-valid-token", map[string]any{
		"title":   "still works",
		"content": "x",
		"type":    model.TypeCustom,
	}, &env)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Empty(t, env.Snippet.OwnerID)
}

func TestPublicSnippetSharing(t *testing.T) {
	srv := newTestServer(t)

	tokenA := signUpAndIn(t, srv, "alice@example.com")
	tokenB := signUpAndIn(t, srv, "bob@example.com")

	var created snippetEnvelope
	rr := do(t, srv, http.MethodPost, "/api/snippets", tokenA, map[string]any{
		"title":    "Email regex",
		"content":  "^[a-z]+@",
		"type":     model.TypeRegex,
		"isPublic": true,
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NotEmpty(t, created.Snippet.ID)
	assert.Equal(t, "https://devtoolbox.test/share/"+created.Snippet.ID, created.Snippet.ShareURL)

	// A different authenticated principal reads the full content.
	var fetched snippetEnvelope
	rr = do(t, srv, http.MethodGet, "/api/snippets/"+created.Snippet.ID, tokenB, nil, &fetched)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "^[a-z]+@", fetched.Snippet.Content)

	// So does an unauthenticated one, through the share path.
	rr = do(t, srv, http.MethodGet, "/share/"+created.Snippet.ID, "", nil, &fetched)
	assert.Equal(t, http.StatusOK, rr.Code)

	// But only the owner can delete.
	rr = do(t, srv, http.MethodDelete, "/api/snippets/"+created.Snippet.ID, tokenB, nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/snippets/"+created.Snippet.ID, tokenA, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodGet, "/share/"+created.Snippet.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPrivateSnippetVisibility(t *testing.T) {
	srv := newTestServer(t)

	tokenA := signUpAndIn(t, srv, "alice@example.com")
	tokenB := signUpAndIn(t, srv, "bob@example.com")

	var created snippetEnvelope
	rr := do(t, srv, http.MethodPost, "/api/snippets", tokenA, map[string]any{
		"title":   "secret",
		"content": "x",
		"type":    model.TypeCustom,
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/snippets/"+created.Snippet.ID, tokenA, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodGet, "/api/snippets/"+created.Snippet.ID, tokenB, nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(t, srv, http.MethodGet, "/api/snippets/"+created.Snippet.ID, "", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Absent ids report 404 before any visibility decision.
	rr = do(t, srv, http.MethodGet, "/api/snippets/does-not-exist", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListOwnRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/user/snippets", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/user/snippets", "bogus-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListOwnIsScopedToOwner(t *testing.T) {
	srv := newTestServer(t)

	tokenA := signUpAndIn(t, srv, "alice@example.com")
	tokenB := signUpAndIn(t, srv, "bob@example.com")

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/snippets", tokenA, map[string]any{
			"title":   fmt.Sprintf("alice %d", i),
			"content": "x",
			"type":    model.TypeJSON,
		}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/snippets", tokenB, map[string]any{
		"title":   "bob's",
		"content": "x",
		"type":    model.TypeJSON,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var listing struct {
		Snippets []struct {
			Title string `json:"title"`
		} `json:"snippets"`
	}
	rr = do(t, srv, http.MethodGet, "/api/user/snippets", tokenA, nil, &listing)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, listing.Snippets, 2)
	for _, s := range listing.Snippets {
		assert.NotEqual(t, "bob's", s.Title)
	}
}

func TestPublicListingIsMetadataOnly(t *testing.T) {
	srv := newTestServer(t)

	token := signUpAndIn(t, srv, "alice@example.com")

	rr := do(t, srv, http.MethodPost, "/api/snippets", token, map[string]any{
		"title":    "shared json",
		"content":  "SECRET-CONTENT",
		"type":     model.TypeJSON,
		"isPublic": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/snippets/public/recent", "", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shared json")
	assert.NotContains(t, rr.Body.String(), "SECRET-CONTENT")
}

func TestPublicListingTypeFilterAndLimit(t *testing.T) {
	srv := newTestServer(t)

	token := signUpAndIn(t, srv, "alice@example.com")

	for _, tc := range []struct{ title, typ string }{
		{"json one", model.TypeJSON},
		{"json two", model.TypeJSON},
		{"json three", model.TypeJSON},
		{"a regex", model.TypeRegex},
	} {
		rr := do(t, srv, http.MethodPost, "/api/snippets", token, map[string]any{
			"title":    tc.title,
			"content":  "x",
			"type":     tc.typ,
			"isPublic": true,
		}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	var listing struct {
		Snippets []struct {
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"snippets"`
	}
	rr := do(t, srv, http.MethodGet, "/api/snippets/public/recent?type=json&limit=1", "", nil, &listing)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, listing.Snippets, 1)
	assert.Equal(t, model.TypeJSON, listing.Snippets[0].Type)
	// Newest JSON snippet wins under limit=1.
	assert.Equal(t, "json three", listing.Snippets[0].Title)
}

func TestDeleteErrors(t *testing.T) {
	srv := newTestServer(t)

	token := signUpAndIn(t, srv, "alice@example.com")

	rr := do(t, srv, http.MethodDelete, "/api/snippets/missing", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/snippets/missing", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSigninRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	signUpAndIn(t, srv, "alice@example.com")

	rr := do(t, srv, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)

	token := signUpAndIn(t, srv, "alice@example.com")

	var me struct {
		User struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	rr := do(t, srv, http.MethodGet, "/api/auth/me", token, nil, &me)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice@example.com", me.User.Email)
	assert.NotContains(t, rr.Body.String(), "passwordHash")
}
