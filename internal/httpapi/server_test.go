package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "test-jwt-secret"

func signedToken(t *testing.T, sub, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           sub,
		"email":         email,
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"full_name": "Ana Lima"},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

// newAuthBackend fakes the hosted auth project with empty tables.
func newAuthBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret123" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  signedToken(t, "u-ana", body["email"]),
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		case r.URL.Path == "/auth/v1/user":
			claims := jwt.MapClaims{}
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"msg":"invalid JWT"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":            claims["sub"],
				"email":         claims["email"],
				"user_metadata": claims["user_metadata"],
			})
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/") && r.Method == http.MethodGet:
			fmt.Fprint(w, `[]`)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/") && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case strings.HasPrefix(r.URL.Path, "/rest/v1/") && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testAPI struct {
	t      *testing.T
	server *Server
	token  string
}

func newTestAPI(t *testing.T, opts ...func(*config.Config)) *testAPI {
	t.Helper()
	backend := newAuthBackend(t)
	cfg := &config.Config{
		DatabasePath:      filepath.Join(t.TempDir(), "chefitup.db"),
		AISearchEnabled:   true,
		InstacartBaseURL:  "http://127.0.0.1:1",
		SupabaseURL:       backend.URL,
		SupabaseAnonKey:   "anon",
		SupabaseJWTSecret: jwtSecret,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	s := NewServer(a, ":0", nil)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	return &testAPI{t: t, server: s, token: signedToken(t, "u-ana", "ana@example.com")}
}

func (api *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	api.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(api.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	rec := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["ai_available"])

	rec = api.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chefitup_http_requests_total")
}

func TestServer_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	api.token = ""
	rec := api.do(http.MethodGet, "/api/recipes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.token = "not-a-jwt"
	rec = api.do(http.MethodGet, "/api/recipes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func withoutJWTSecret(cfg *config.Config) { cfg.SupabaseJWTSecret = "" }

func TestServer_ConfirmsTokensWithAuthProject(t *testing.T) {
	api := newTestAPI(t, withoutJWTSecret)

	rec := api.do(http.MethodGet, "/api/meal-plans/current", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "other-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-key"))
	require.NoError(t, err)
	api.token = forged

	rec = api.do(http.MethodGet, "/api/meal-plans/current", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPut, "/api/instacart/mock-mode", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_NoAuthConfigured(t *testing.T) {
	api := newTestAPI(t, withoutJWTSecret, func(cfg *config.Config) {
		cfg.SupabaseURL = ""
		cfg.SupabaseAnonKey = ""
	})

	rec := api.do(http.MethodGet, "/api/recipes", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/signin", signInRequest{Email: "ana@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Recipes(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/recipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[map[string][]map[string]any](t, rec)["recipes"]
	assert.Len(t, all, 10)

	rec = api.do(http.MethodGet, "/api/recipes?max_time=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/recipes/recipe-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/recipes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/recipes/search", searchRequest{Query: "pasta"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plain", decodeBody[searchResponse](t, rec).Tier)

	rec = api.do(http.MethodPost, "/api/recipes/generate", generateRequest{Prompt: "soup"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = api.do(http.MethodPost, "/api/recipes/generate", generateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt is required")

	rec = api.do(http.MethodPost, "/api/recipes/import", importRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MealPlanAndShoppingList(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/meal-plans/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-03-02")

	rec = api.do(http.MethodGet, "/api/meal-plans/last-week", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/meal-plans/2026-03-04/monday/dinner", setMealRequest{RecipeID: "recipe-1", Servings: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPut, "/api/meal-plans/2026-03-04/monday/lunch", setMealRequest{RecipeID: "no-such-recipe", Servings: 2})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPut, "/api/meal-plans/2026-03-04/funday/dinner", setMealRequest{RecipeID: "recipe-1", Servings: 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/meal-plans/2026-03-04/monday/dinner", setMealRequest{RecipeID: "recipe-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[shoppingListResponse](t, rec)
	require.NotEmpty(t, list.Items)
	assert.NotEmpty(t, list.Groups)

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/items", addItemRequest{Name: "coffee", Quantity: "1", Unit: "bag"})
	require.Equal(t, http.StatusOK, rec.Code)
	list = decodeBody[shoppingListResponse](t, rec)
	coffee := list.Items[len(list.Items)-1]
	assert.Equal(t, "coffee", coffee.Name)

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/items/"+coffee.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[shoppingListResponse](t, rec).CheckedCount())

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/export", exportRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	link := decodeBody[exportResponse](t, rec)
	assert.True(t, link.Mock)
	assert.NotContains(t, link.URL, "coffee")

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/clear-checked", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[shoppingListResponse](t, rec).Items, len(list.Items)-1)

	rec = api.do(http.MethodDelete, "/api/shopping-lists/2026-03-02/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/api/shopping-lists/2026-03-02/recipes", addRecipeRequest{RecipeID: "nope", Servings: 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodDelete, "/api/meal-plans/2026-03-02/monday/dinner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "recipe-1")
}

func TestServer_EmptyExport(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/shopping-lists/current/export", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Auth(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	rec := api.do(http.MethodPost, "/api/auth/signin", signInRequest{Email: "ana@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decodeBody[sessionResponse](t, rec)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)
	assert.Equal(t, "u-ana", sess.User.ID)
	assert.Equal(t, 1, sess.User.Preferences.HouseholdSize)

	rec = api.do(http.MethodPost, "/api/auth/signin", signInRequest{Email: "ana@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/signin", signInRequest{Email: "not-an-email", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/auth/oauth/google?redirect_to=http://localhost/cb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["url"], "provider=google")

	api.token = sess.AccessToken
	rec = api.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Lima", decodeBody[map[string]any](t, rec)["name"])

	rec = api.do(http.MethodPatch, "/api/me/preferences", map[string]any{"household_size": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, "/api/me/preferences", map[string]any{"household_size": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"household_size":3`)

	rec = api.do(http.MethodPost, "/api/auth/signout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_InstacartMockMode(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/instacart/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[instacartStatus](t, rec).MockMode, "no API key means mock mode")

	rec = api.do(http.MethodPut, "/api/instacart/mock-mode", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/instacart/mock-mode", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[instacartStatus](t, rec).MockMode)

	rec = api.do(http.MethodPost, "/api/instacart/test-connection", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
