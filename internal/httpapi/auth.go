package httpapi

import (
	"net/http"
	"time"

	"chefitup/internal/session"

	"github.com/go-chi/chi/v5"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type oauthCallbackRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token"`
}

type preferencesRequest struct {
	HouseholdSize       *int      `json:"household_size" validate:"omitnil,gte=1"`
	InstacartConnected  *bool     `json:"instacart_connected"`
	DietaryRestrictions *[]string `json:"dietary_restrictions"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	User         session.User `json:"user"`
}

func newSessionResponse(b *session.Bridge) sessionResponse {
	s, _ := b.Session()
	resp := sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User,
	}
	if !s.ExpiresAt.IsZero() {
		resp.ExpiresAt = &s.ExpiresAt
	}
	return resp
}

// handleSignIn handles POST /api/auth/signin
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	bridge, err := s.svc.NewSession()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := bridge.SignIn(r.Context(), req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(bridge))
}

// handleSignUp handles POST /api/auth/signup
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	bridge, err := s.svc.NewSession()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := bridge.SignUp(r.Context(), req.Name, req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(bridge))
}

// handleSignOut handles POST /api/auth/signout. It always answers 204.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if ok {
		if bridge, err := s.svc.NewSession(); err == nil {
			if _, err := bridge.Restore(r.Context(), token); err == nil {
				bridge.SignOut(r.Context())
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOAuthStart handles GET /api/auth/oauth/{provider}
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	bridge, err := s.svc.NewSession()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url := bridge.OAuthURL(chi.URLParam(r, "provider"), r.URL.Query().Get("redirect_to"))
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleOAuthCallback handles POST /api/auth/oauth/callback
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req oauthCallbackRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	bridge, err := s.svc.NewSession()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := bridge.CompleteOAuth(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(bridge))
}

// restore rebuilds the caller's session from their access token.
func (s *Server) restore(r *http.Request) (*session.Bridge, session.User, error) {
	bridge, err := s.svc.NewSession()
	if err != nil {
		return nil, session.User{}, err
	}
	user, err := bridge.Restore(r.Context(), accessToken(r))
	if err != nil {
		return nil, session.User{}, err
	}
	return bridge, user, nil
}

// handleMe handles GET /api/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_, user, err := s.restore(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdatePreferences handles PATCH /api/me/preferences
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	bridge, _, err := s.restore(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := bridge.UpdatePreferences(r.Context(), session.PreferencesUpdate{
		HouseholdSize:       req.HouseholdSize,
		InstacartConnected:  req.InstacartConnected,
		DietaryRestrictions: req.DietaryRestrictions,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
