package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

type mockModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type instacartStatus struct {
	MockMode bool `json:"mock_mode"`
}

// handleInstacartStatus handles GET /api/instacart/status
func (s *Server) handleInstacartStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, instacartStatus{MockMode: s.svc.InstacartMockMode()})
}

// handleSetMockMode handles PUT /api/instacart/mock-mode
func (s *Server) handleSetMockMode(w http.ResponseWriter, r *http.Request) {
	var req mockModeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.svc.SetInstacartMockMode(*req.Enabled)
	s.logger.Info("instacart mock mode changed", zap.Bool("enabled", *req.Enabled), zap.String("user_id", userID(r)))
	writeJSON(w, http.StatusOK, instacartStatus{MockMode: s.svc.InstacartMockMode()})
}

// handleTestConnection handles POST /api/instacart/test-connection
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.TestInstacartConnection(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mock_mode": s.svc.InstacartMockMode()})
}
