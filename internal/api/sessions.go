package api

import (
	"errors"
	"io"
	"net/http"

	"tablebook/internal/dialog"
	"tablebook/internal/metrics"
	"tablebook/internal/reservation"
	"tablebook/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// stepRequest carries the caller's words for a flow step. PartySize lets a host
// that already extracted a number skip speech parsing.
type stepRequest struct {
	Text      string `json:"text"`
	PartySize *int   `json:"party_size,omitempty"`
}

type flowResponse struct {
	Message   string           `json:"message"`
	Outcome   string           `json:"outcome"`
	BookingID string           `json:"booking_id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Session   *session.Session `json:"session"`
}

type stepFunc func(r *http.Request, sess *session.Session, req stepRequest) reservation.Result

// flowStep loads the session, runs fn and saves the session back.
func (s *Server) flowStep(name string, fn stepFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(name)

		var req stepRequest
		if r.Method == http.MethodPost && r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}
		}

		sess, ok := s.loadSession(w, r)
		if !ok {
			return
		}

		res := fn(r, sess, req)

		if err := s.sessions.Save(r.Context(), sess); err != nil {
			s.logger.Error().Err(err).Str("session", sess.ID).Msg("failed to save session")
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}

		out := flowResponse{
			Message:   res.Message,
			Outcome:   string(res.Outcome),
			BookingID: res.BookingID,
			Session:   sess,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	case err != nil:
		s.logger.Error().Err(err).Str("session", id).Msg("failed to load session")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return nil, false
	}
	return sess, true
}

// createSession handles POST /api/v1/sessions
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_session")

	sess := session.New(uuid.NewString(), s.now())
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	writeJSON(w, http.StatusCreated, flowResponse{
		Message: dialog.Greeting[sess.Role],
		Outcome: string(reservation.OutcomeRouted),
		Session: sess,
	})
}

// getSession handles GET /api/v1/sessions/{id}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_session")

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// deleteSession handles DELETE /api/v1/sessions/{id}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_session")

	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) routeStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	return s.flow.Route(sess, req.Text)
}

func (s *Server) nameStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	return s.flow.UpdateName(sess, req.Text)
}

func (s *Server) phoneStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	return s.flow.UpdatePhone(sess, req.Text)
}

func (s *Server) dateStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	return s.flow.CollectDate(sess, req.Text)
}

func (s *Server) timeStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	return s.flow.CollectTime(sess, req.Text)
}

func (s *Server) partySizeStep(_ *http.Request, sess *session.Session, req stepRequest) reservation.Result {
	if req.PartySize != nil {
		return s.flow.SetPartySize(sess, *req.PartySize)
	}
	return s.flow.CollectPartySize(sess, req.Text)
}

func (s *Server) checkAvailabilityStep(r *http.Request, sess *session.Session, _ stepRequest) reservation.Result {
	return s.flow.CheckAvailability(r.Context(), sess)
}

func (s *Server) alternativesStep(r *http.Request, sess *session.Session, _ stepRequest) reservation.Result {
	return s.flow.SuggestAlternatives(r.Context(), sess)
}

func (s *Server) confirmStep(r *http.Request, sess *session.Session, _ stepRequest) reservation.Result {
	return s.flow.ConfirmReservation(r.Context(), sess)
}

func (s *Server) restartStep(_ *http.Request, sess *session.Session, _ stepRequest) reservation.Result {
	return s.flow.Restart(sess)
}

func (s *Server) summaryStep(_ *http.Request, sess *session.Session, _ stepRequest) reservation.Result {
	return s.flow.Summary(sess)
}
