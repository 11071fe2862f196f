package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var shipment fleet.Shipment
	if err := json.NewDecoder(r.Body).Decode(&shipment); err != nil {
		s.writeError(w, r, shared.NewValidationError("invalid shipment_list"))
		return
	}

	result, err := s.fleet.CreateShipment(r.Context(), shipment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result.Result == "ignore" {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleRobotState(w http.ResponseWriter, r *http.Request) {
	robotID := chi.URLParam(r, "robot_id")
	status, err := s.fleet.RobotState(r.Context(), robotID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMoveNext(w http.ResponseWriter, r *http.Request) {
	robotID := chi.URLParam(r, "robot_id")
	if err := s.fleet.MoveNext(r.Context(), robotID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	robotID := chi.URLParam(r, "robot_id")
	if err := s.fleet.Emergency(r.Context(), robotID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

// handleNotification always answers 200; per-element failures surface in
// the ignored_data list instead of the status code.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var notification fleet.Notification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		s.writeError(w, r, shared.NewValidationError("invalid notification data"))
		return
	}
	result := s.fleet.ProcessNotification(r.Context(), notification)
	writeJSON(w, http.StatusOK, result)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindPrecondition:
		return http.StatusPreconditionFailed
	case shared.KindUnavailable:
		return http.StatusUnprocessableEntity
	case shared.KindConflict:
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// writeError renders the error body: the message, the upstream root cause
// when one was recorded, and any context pairs the error carries, merged
// into one flat object.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := map[string]any{"message": err.Error()}
	if appErr, ok := shared.AsAppError(err); ok {
		body["message"] = appErr.Message
		if appErr.RootCause != "" {
			body["root_cause"] = appErr.RootCause
		}
		for key, value := range appErr.Context {
			body[key] = value
		}
	}

	logger := s.logger.With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.Error(err))
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
