package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/application/query"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/internal/interface/http/handlers"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSONErrorWithData(w, r, http.StatusServiceUnavailable, "Unhealthy", status.Message, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness check endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "NotReady", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness check endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHMAKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type upsertProfileRequest struct {
	EventID      string   `json:"eventId"`
	Headline     string   `json:"headline"`
	Bio          string   `json:"bio"`
	JobTitle     string   `json:"jobTitle"`
	Company      string   `json:"company"`
	Interests    []string `json:"interests"`
	Goals        []string `json:"goals"`
	Availability []string `json:"availability"`
}

// handleUpsertProfile handles POST /matchmaking/profile
func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.UpsertProfile.Handle(r.Context(), command.UpsertProfileCommand{
		ActorID:       handlers.ActorID(r.Context()),
		EventID:       req.EventID,
		Headline:      req.Headline,
		Bio:           req.Bio,
		JobTitle:      req.JobTitle,
		Company:       req.Company,
		Interests:     req.Interests,
		Goals:         req.Goals,
		Availability:  req.Availability,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"profile": query.ToProfileDTO(res.Profile),
		"created": res.Created,
	})
}

// handleGetProfile handles GET /matchmaking/profile?eventId=
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.GetProfile.Handle(r.Context(), query.GetProfileQuery{
		ActorID: handlers.ActorID(r.Context()),
		EventID: r.URL.Query().Get("eventId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"profile": profile})
}

// handleDeleteProfile handles DELETE /matchmaking/profile?eventId=
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	err := s.deps.DeleteProfile.Handle(r.Context(), command.DeleteProfileCommand{
		ActorID:       handlers.ActorID(r.Context()),
		EventID:       r.URL.Query().Get("eventId"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSuggestions handles GET /matchmaking/suggest?eventId=&limit=
func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.GetSuggestions.Handle(r.Context(), query.GetSuggestionsQuery{
		ActorID: handlers.ActorID(r.Context()),
		EventID: r.URL.Query().Get("eventId"),
		Limit:   limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	total := len(res.Suggestions)
	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{Total: &total})
}

type regenerateRequest struct {
	EventID string `json:"eventId"`
}

// handleRegenerate handles POST /matchmaking/suggest
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.deps.RequestRegeneration.Handle(r.Context(), command.RequestRegenerationCommand{
		ActorID: handlers.ActorID(r.Context()),
		EventID: req.EventID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]bool{"regenerated": true})
}

// handleSlotConflicts handles GET /matchmaking/slots/conflicts?eventId=
func (s *Server) handleSlotConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.deps.ListSlotConflicts.Handle(r.Context(), query.ListSlotConflictsQuery{
		EventID: r.URL.Query().Get("eventId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

// ══════════════════════════════════════════════════════════════════════════════
// APPOINTMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type requestAppointmentRequest struct {
	EventID     string `json:"eventId"`
	RecipientID string `json:"recipientId"`
	TimeSlotID  string `json:"timeSlotId"`
	LocationID  string `json:"locationId"`
	Message     string `json:"message"`
}

// handleRequestAppointment handles POST /appointments
func (s *Server) handleRequestAppointment(w http.ResponseWriter, r *http.Request) {
	var req requestAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	appt, err := s.deps.RequestAppointment.Handle(r.Context(), command.RequestAppointmentCommand{
		ActorID:       handlers.ActorID(r.Context()),
		EventID:       req.EventID,
		RecipientID:   req.RecipientID,
		TimeSlotID:    req.TimeSlotID,
		LocationID:    req.LocationID,
		Message:       req.Message,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]interface{}{"appointment": query.ToAppointmentDTO(appt)})
}

// handleAcceptAppointment handles POST /appointments/{id}/accept
func (s *Server) handleAcceptAppointment(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, command.DecisionAccept)
}

// handleDeclineAppointment handles POST /appointments/{id}/decline
func (s *Server) handleDeclineAppointment(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, command.DecisionDecline)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, decision command.Decision) {
	appt, err := s.deps.RespondAppointment.Handle(r.Context(), command.RespondAppointmentCommand{
		ActorID:       handlers.ActorID(r.Context()),
		AppointmentID: mux.Vars(r)["id"],
		Decision:      decision,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		// A failed confirmation declines the request; the client gets both.
		if appt != nil {
			status, code, msg := s.errorResponse(r, err)
			writeJSONErrorWithData(w, r, status, code, msg, map[string]interface{}{"appointment": query.ToAppointmentDTO(appt)})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"appointment": query.ToAppointmentDTO(appt)})
}

// handleCancelAppointment handles POST /appointments/{id}/cancel
func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.deps.CancelAppointment.Handle(r.Context(), command.CancelAppointmentCommand{
		ActorID:       handlers.ActorID(r.Context()),
		AppointmentID: mux.Vars(r)["id"],
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"appointment": query.ToAppointmentDTO(appt)})
}

// handleListAppointments handles GET /appointments?eventId=&participantId=&status=&limit=&offset=
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var statuses []scheduling.Status
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, scheduling.Status(strings.ToUpper(raw)))
		}
	}

	list, err := s.deps.ListAppointments.Handle(r.Context(), query.ListAppointmentsQuery{
		ActorID:       handlers.ActorID(r.Context()),
		EventID:       r.URL.Query().Get("eventId"),
		ParticipantID: r.URL.Query().Get("participantId"),
		Statuses:      statuses,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	total := len(list)
	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{"appointments": list}, &ResponseMeta{Total: &total})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusForCode maps public error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case shared.CodeValidation:
		return http.StatusBadRequest
	case shared.CodeSlotFull, shared.CodeParticipantDoubleBooked,
		shared.CodeInvalidTransition, shared.CodeReservationReleased:
		return http.StatusConflict
	case shared.CodeNotFound, shared.CodeProfileNotFound:
		return http.StatusNotFound
	case shared.CodeForbidden:
		return http.StatusForbidden
	case shared.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse resolves status, code and client message for err. Internal
// errors are logged and their details hidden.
func (s *Server) errorResponse(r *http.Request, err error) (int, string, string) {
	code := shared.Code(err)
	status := statusForCode(code)

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		return status, shared.CodeInternal, "An unexpected error occurred"
	}

	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	return status, code, msg
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := s.errorResponse(r, err)
	writeJSONError(w, r, status, code, msg)
}

// AuthFailure writes the 401 envelope for a rejected credential. It is the
// failure callback for handlers.Authenticator.
func AuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	writeJSONError(w, r, http.StatusUnauthorized, shared.CodeUnauthorized, err.Error())
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON decodes the request body. Malformed bodies are validation errors.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return shared.Validation("http", "DecodeBody", "request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return shared.Validation("http", "DecodeBody", "request body is required")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return shared.Validation("http", "DecodeBody", "request body exceeds %d bytes", maxErr.Limit)
		}
		return shared.Validation("http", "DecodeBody", "malformed JSON body: %v", err)
	}
}

// queryInt parses an optional integer query parameter (0 when absent).
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.Validation("http", "ParseQuery", "%s must be an integer", key)
	}
	return n, nil
}
