// Package supabase is a small client for the Supabase auth (GoTrue) and
// table (PostgREST) endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chefitup/internal/config"
)

const (
	requestTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Error is a non-2xx answer from Supabase.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase error: status=%d body=%s", e.StatusCode, e.Body)
}

// User is the auth user returned by GoTrue.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Session is a GoTrue token grant.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// Client calls one Supabase project.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
}

// NewClient creates a new Supabase client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/"),
		anonKey:    cfg.SupabaseAnonKey,
	}
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", nil, body, &s)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign in: %w", err)
	}
	return s, nil
}

// SignUp creates an auth user. When the project requires email confirmation
// the returned session has no access token and only User is set.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (Session, error) {
	body := map[string]any{"email": email, "password": password, "data": metadata}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", nil, body, &raw); err != nil {
		return Session{}, fmt.Errorf("failed to sign up: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode sign up response: %w", err)
	}
	if s.AccessToken == "" && s.User.ID == "" {
		if err := json.Unmarshal(raw, &s.User); err != nil {
			return Session{}, fmt.Errorf("failed to decode sign up response: %w", err)
		}
	}
	return s, nil
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, nil, &u); err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// SignOut revokes the refresh tokens behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// AuthorizeURL is where a browser starts an OAuth sign-in with provider.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// Filter is one PostgREST row filter such as id=eq.42.
type Filter struct {
	Column string
	Expr   string
}

// Eq matches rows whose column equals value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Expr: "eq." + value}
}

// In matches rows whose column is one of values.
func In(column string, values []string) Filter {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return Filter{Column: column, Expr: "in.(" + strings.Join(quoted, ",") + ")"}
}

func filterQuery(filters []Filter) url.Values {
	q := url.Values{}
	for _, f := range filters {
		q.Add(f.Column, f.Expr)
	}
	return q
}

// Select reads rows of table into out, which must be a pointer to a slice.
func (c *Client) Select(ctx context.Context, accessToken, table, columns string, out any, filters ...Filter) error {
	q := filterQuery(filters)
	if columns == "" {
		columns = "*"
	}
	q.Set("select", columns)
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, accessToken, q, nil, out); err != nil {
		return fmt.Errorf("failed to select %s: %w", table, err)
	}
	return nil
}

// Insert adds rows to table.
func (c *Client) Insert(ctx context.Context, accessToken, table string, rows any) error {
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, accessToken, nil, rows, nil,
		header{"Prefer", "return=minimal"})
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Upsert inserts rows or merges them on the onConflict columns.
func (c *Client) Upsert(ctx context.Context, accessToken, table string, rows any, onConflict string) error {
	q := url.Values{}
	if onConflict != "" {
		q.Set("on_conflict", onConflict)
	}
	err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, accessToken, q, rows, nil,
		header{"Prefer", "resolution=merge-duplicates,return=minimal"})
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// Delete removes the rows of table matching filters.
func (c *Client) Delete(ctx context.Context, accessToken, table string, filters ...Filter) error {
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/"+table, accessToken, filterQuery(filters), nil, nil); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

type header struct{ key, value string }

func (c *Client) do(ctx context.Context, method, path, accessToken string, query url.Values, in, out any, extra ...header) error {
	target := c.baseURL + path
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	bearer := accessToken
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range extra {
		req.Header.Set(h.key, h.value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ID is a row key that may be stored as a number or a string.
type ID string

// UnmarshalJSON accepts JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
