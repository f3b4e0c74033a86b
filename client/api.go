package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/devtoolbox/internal/model"
)

// APIError is a non-2xx response from the service, carrying the status
// code and the server's error envelope.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// API is a thin HTTP client for the snippet service. It holds no
// credential state; callers pass the bearer token per call so the Syncer
// stays the single owner of the session.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates an API client for the service at baseURL.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SignUp registers an account.
func (a *API) SignUp(ctx context.Context, email, password, name string) error {
	body := map[string]string{"email": email, "password": password, "name": name}
	return a.do(ctx, http.MethodPost, "/api/auth/signup", "", body, nil)
}

// SignIn exchanges credentials for a bearer token and the user profile.
func (a *API) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		AccessToken string      `json:"accessToken"`
		User        *model.User `json:"user"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/auth/signin", "", body, &resp); err != nil {
		return "", nil, err
	}
	return resp.AccessToken, resp.User, nil
}

// Me returns the profile behind the token.
func (a *API) Me(ctx context.Context, token string) (*model.User, error) {
	var resp struct {
		User *model.User `json:"user"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// CreateSnippet saves a snippet on the server. An empty token creates it
// anonymously.
func (a *API) CreateSnippet(ctx context.Context, token, title, content, snippetType string, isPublic bool) (*model.Snippet, error) {
	body := map[string]any{
		"title":    title,
		"content":  content,
		"type":     snippetType,
		"isPublic": isPublic,
	}
	var resp struct {
		Snippet *model.Snippet `json:"snippet"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/snippets", token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Snippet, nil
}

// GetSnippet fetches one snippet by id, subject to server-side visibility.
func (a *API) GetSnippet(ctx context.Context, token, id string) (*model.Snippet, error) {
	var resp struct {
		Snippet *model.Snippet `json:"snippet"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snippet, nil
}

// ListOwn returns the caller's snippets, newest first.
func (a *API) ListOwn(ctx context.Context, token string) ([]model.Snippet, error) {
	var resp struct {
		Snippets []model.Snippet `json:"snippets"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/user/snippets", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snippets, nil
}

// ListPublic returns recent public snippet metadata. typeFilter and limit
// are optional; zero values mean server defaults.
func (a *API) ListPublic(ctx context.Context, typeFilter string, limit int) ([]model.SnippetMeta, error) {
	q := url.Values{}
	if typeFilter != "" {
		q.Set("type", typeFilter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/snippets/public/recent"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Snippets []model.SnippetMeta `json:"snippets"`
	}
	if err := a.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snippets, nil
}

// DeleteSnippet removes a snippet owned by the token's principal.
func (a *API) DeleteSnippet(ctx context.Context, token, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/snippets/"+url.PathEscape(id), token, nil, nil)
}

// do performs one request. body is JSON-encoded when non-nil; a non-2xx
// response becomes an *APIError; out receives the decoded body when
// non-nil.
func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		// Best effort; the status code alone is still useful.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
