// Package session keeps the signed-in user and their preferences in sync
// with the hosted auth provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chefitup/internal/logging"
	"chefitup/internal/supabase"

	"go.uber.org/zap"
)

const (
	tableProfiles         = "profiles"
	tablePreferences      = "user_preferences"
	tableUserRestrictions = "user_dietary_restrictions"
	tableDietRestrictions = "dietary_restrictions"
	defaultHouseholdSize  = 1
)

var (
	// ErrNotSignedIn is returned by calls that need a user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidHouseholdSize is returned for household sizes below one.
	ErrInvalidHouseholdSize = errors.New("household size must be at least 1")
	// ErrConfirmationRequired is returned by SignUp when the account exists
	// but the email address has to be confirmed before signing in.
	ErrConfirmationRequired = errors.New("email confirmation required")
	// ErrMissingCredentials is returned for blank email or password.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Backend is the hosted auth and table API. *supabase.Client implements it.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (supabase.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo string) string
	Select(ctx context.Context, accessToken, table, columns string, out any, filters ...supabase.Filter) error
	Insert(ctx context.Context, accessToken, table string, rows any) error
	Upsert(ctx context.Context, accessToken, table string, rows any, onConflict string) error
	Delete(ctx context.Context, accessToken, table string, filters ...supabase.Filter) error
}

// Preferences are the per-user planning settings.
type Preferences struct {
	HouseholdSize       int      `json:"household_size"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	InstacartConnected  bool     `json:"instacart_connected"`
}

// User is the signed-in user as the app sees it.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Preferences Preferences `json:"preferences"`
}

// Session is the current authenticated state.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// PreferencesUpdate changes only the fields that are set.
type PreferencesUpdate struct {
	HouseholdSize       *int
	InstacartConnected  *bool
	DietaryRestrictions *[]string
}

type profileRow struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type preferencesRow struct {
	UserID             string `json:"user_id"`
	HouseholdSize      int    `json:"household_size"`
	InstacartConnected bool   `json:"instacart_connected"`
}

type restrictionRow struct {
	ID   supabase.ID `json:"id"`
	Name string      `json:"name"`
}

type userRestrictionRow struct {
	UserID        string      `json:"user_id"`
	RestrictionID supabase.ID `json:"restriction_id"`
}

// Bridge holds one user's session. It starts anonymous.
type Bridge struct {
	backend Backend
	tokens  *TokenParser
	logger  *zap.Logger

	mu      sync.RWMutex
	session *Session
}

// New creates an anonymous Bridge.
func New(backend Backend, tokens *TokenParser, logger *zap.Logger) *Bridge {
	return &Bridge{
		backend: backend,
		tokens:  tokens,
		logger:  logging.OrNop(logger),
	}
}

// CurrentUser returns the cached user without calling the backend.
func (b *Bridge) CurrentUser() (User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return User{}, false
	}
	return cloneUser(b.session.User), true
}

// Session returns the current session.
func (b *Bridge) Session() (Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return Session{}, false
	}
	s := *b.session
	s.User = cloneUser(s.User)
	return s, true
}

// SignIn authenticates with email and password and loads the user.
func (b *Bridge) SignIn(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	s, err := b.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	return b.establish(ctx, s.AccessToken, s.RefreshToken, "")
}

// SignUp creates the account and signs the user in. A missing profile or
// preferences row is created then; existing rows are kept.
func (b *Bridge) SignUp(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	s, err := b.backend.SignUp(ctx, email, password, map[string]any{"full_name": name})
	if err != nil {
		return User{}, err
	}
	if s.AccessToken == "" {
		return User{}, ErrConfirmationRequired
	}

	return b.establish(ctx, s.AccessToken, s.RefreshToken, name)
}

// CompleteOAuth finishes an OAuth redirect with the tokens it carried.
func (b *Bridge) CompleteOAuth(ctx context.Context, accessToken, refreshToken string) (User, error) {
	return b.establish(ctx, accessToken, refreshToken, "")
}

// Restore signs in with an access token from an earlier session.
func (b *Bridge) Restore(ctx context.Context, accessToken string) (User, error) {
	return b.establish(ctx, accessToken, "", "")
}

// OAuthURL returns the URL that starts an OAuth sign-in.
func (b *Bridge) OAuthURL(provider, redirectTo string) string {
	return b.backend.AuthorizeURL(provider, redirectTo)
}

// establish loads the user behind accessToken, creating the profile and
// default preferences when they are missing, and stores the session. name,
// when set, is used for a newly created profile.
func (b *Bridge) establish(ctx context.Context, accessToken, refreshToken, name string) (User, error) {
	claims, err := b.tokens.Parse(accessToken)
	if err != nil {
		return User{}, err
	}

	user, err := b.loadUser(ctx, accessToken, claims, name)
	if err != nil {
		return User{}, err
	}

	s := &Session{AccessToken: accessToken, RefreshToken: refreshToken, User: user}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	b.mu.Lock()
	b.session = s
	b.mu.Unlock()

	b.logger.Info("user signed in", zap.String("user_id", user.ID))
	return cloneUser(user), nil
}

func (b *Bridge) loadUser(ctx context.Context, token string, claims Claims, name string) (User, error) {
	userID := claims.Subject

	var profiles []profileRow
	if err := b.backend.Select(ctx, token, tableProfiles, "*", &profiles, supabase.Eq("id", userID)); err != nil {
		return User{}, fmt.Errorf("failed to load profile: %w", err)
	}
	var profile profileRow
	if len(profiles) > 0 {
		profile = profiles[0]
	} else {
		if name == "" {
			name = claims.FullName()
		}
		profile = profileRow{ID: userID, FullName: name, Email: claims.Email}
		if err := b.backend.Upsert(ctx, token, tableProfiles, profile, "id"); err != nil {
			return User{}, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	var prefRows []preferencesRow
	if err := b.backend.Select(ctx, token, tablePreferences, "*", &prefRows, supabase.Eq("user_id", userID)); err != nil {
		return User{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	prefs := preferencesRow{UserID: userID, HouseholdSize: defaultHouseholdSize}
	if len(prefRows) > 0 {
		prefs = prefRows[0]
	} else if err := b.backend.Upsert(ctx, token, tablePreferences, prefs, "user_id"); err != nil {
		return User{}, fmt.Errorf("failed to create preferences: %w", err)
	}
	if prefs.HouseholdSize < 1 {
		prefs.HouseholdSize = defaultHouseholdSize
	}

	restrictions, err := b.loadRestrictions(ctx, token, userID)
	if err != nil {
		return User{}, err
	}

	email := profile.Email
	if email == "" {
		email = claims.Email
	}
	return User{
		ID:    userID,
		Name:  displayName(profile.FullName, claims, email),
		Email: email,
		Preferences: Preferences{
			HouseholdSize:       prefs.HouseholdSize,
			DietaryRestrictions: restrictions,
			InstacartConnected:  prefs.InstacartConnected,
		},
	}, nil
}

func (b *Bridge) loadRestrictions(ctx context.Context, token, userID string) ([]string, error) {
	var links []userRestrictionRow
	err := b.backend.Select(ctx, token, tableUserRestrictions, "restriction_id", &links, supabase.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load dietary restrictions: %w", err)
	}
	names := []string{}
	if len(links) == 0 {
		return names, nil
	}

	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = string(l.RestrictionID)
	}
	var rows []restrictionRow
	if err := b.backend.Select(ctx, token, tableDietRestrictions, "id,name", &rows, supabase.In("id", ids)); err != nil {
		return nil, fmt.Errorf("failed to load dietary restrictions: %w", err)
	}
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}

// UpdatePreferences merges u into the stored preferences.
func (b *Bridge) UpdatePreferences(ctx context.Context, u PreferencesUpdate) (User, error) {
	s, ok := b.Session()
	if !ok {
		return User{}, ErrNotSignedIn
	}
	if u.HouseholdSize != nil && *u.HouseholdSize < 1 {
		return User{}, ErrInvalidHouseholdSize
	}

	prefs := s.User.Preferences
	if u.HouseholdSize != nil || u.InstacartConnected != nil {
		if u.HouseholdSize != nil {
			prefs.HouseholdSize = *u.HouseholdSize
		}
		if u.InstacartConnected != nil {
			prefs.InstacartConnected = *u.InstacartConnected
		}
		row := preferencesRow{
			UserID:             s.User.ID,
			HouseholdSize:      prefs.HouseholdSize,
			InstacartConnected: prefs.InstacartConnected,
		}
		if err := b.backend.Upsert(ctx, s.AccessToken, tablePreferences, row, "user_id"); err != nil {
			return User{}, fmt.Errorf("failed to save preferences: %w", err)
		}
	}

	if u.DietaryRestrictions != nil {
		names, err := b.replaceRestrictions(ctx, s.AccessToken, s.User.ID, *u.DietaryRestrictions)
		if err != nil {
			return User{}, err
		}
		prefs.DietaryRestrictions = names
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil || b.session.User.ID != s.User.ID {
		return User{}, ErrNotSignedIn
	}
	b.session.User.Preferences = prefs
	return cloneUser(b.session.User), nil
}

// replaceRestrictions stores the restrictions named in wanted and returns
// the ones that exist, in the requested order.
func (b *Bridge) replaceRestrictions(ctx context.Context, token, userID string, wanted []string) ([]string, error) {
	var requested []string
	seen := map[string]bool{}
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		requested = append(requested, w)
	}

	byName := map[string]restrictionRow{}
	if len(requested) > 0 {
		var rows []restrictionRow
		if err := b.backend.Select(ctx, token, tableDietRestrictions, "id,name", &rows, supabase.In("name", requested)); err != nil {
			return nil, fmt.Errorf("failed to look up dietary restrictions: %w", err)
		}
		for _, r := range rows {
			byName[strings.ToLower(r.Name)] = r
		}
	}

	if err := b.backend.Delete(ctx, token, tableUserRestrictions, supabase.Eq("user_id", userID)); err != nil {
		return nil, fmt.Errorf("failed to clear dietary restrictions: %w", err)
	}

	names := []string{}
	var links []userRestrictionRow
	for _, w := range requested {
		r, ok := byName[w]
		if !ok {
			b.logger.Warn("unknown dietary restriction ignored", zap.String("restriction", w))
			continue
		}
		names = append(names, r.Name)
		links = append(links, userRestrictionRow{UserID: userID, RestrictionID: r.ID})
	}
	if len(links) > 0 {
		if err := b.backend.Insert(ctx, token, tableUserRestrictions, links); err != nil {
			return nil, fmt.Errorf("failed to save dietary restrictions: %w", err)
		}
	}
	return names, nil
}

// SignOut forgets the session locally, then revokes it remotely. A remote
// failure is logged only.
func (b *Bridge) SignOut(ctx context.Context) {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()

	if s == nil {
		return
	}
	if err := b.backend.SignOut(ctx, s.AccessToken); err != nil {
		b.logger.Warn("remote sign out failed", zap.String("user_id", s.User.ID), zap.Error(err))
	}
}

func displayName(fullName string, claims Claims, email string) string {
	if n := strings.TrimSpace(fullName); n != "" {
		return n
	}
	if n := claims.FullName(); n != "" {
		return n
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func cloneUser(u User) User {
	u.Preferences.DietaryRestrictions = append([]string{}, u.Preferences.DietaryRestrictions...)
	return u
}
