// Package reservation drives the table reservation conversation over an explicit session.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/dialog"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/nlparse"
	"tablebook/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingSink persists confirmed reservations.
type BookingSink interface {
	SaveBooking(ctx context.Context, b *models.Booking) error
	UpsertCustomer(ctx context.Context, c models.Customer) error
}

// Publisher receives domain events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Outcome classifies what an operation did, for hosts that branch on it.
type Outcome string

const (
	OutcomeCollected        Outcome = "collected"
	OutcomeReprompt         Outcome = "reprompt"
	OutcomeAvailable        Outcome = "available"
	OutcomeAlternatives     Outcome = "alternatives"
	OutcomeNoAlternatives   Outcome = "no_alternatives"
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeConfirmedUnsaved Outcome = "confirmed_unsaved"
	OutcomeSummary          Outcome = "summary"
	OutcomeRouted           Outcome = "routed"
	OutcomeUnavailable      Outcome = "unavailable"
)

// Result is what every flow operation hands back to the host. Message is always
// safe to speak; Err explains any outcome other than plain success.
type Result struct {
	Message   string
	Outcome   Outcome
	BookingID string
	Err       error
}

// Rules are the business limits applied by the flow.
type Rules struct {
	MinPartySize    int
	MaxPartySize    int
	MaxAlternatives int
	// TimeFallback accepts unreadable times as 19:00 instead of asking again.
	TimeFallback bool
}

// DefaultRules returns parties of 1 to 50, three alternatives and re-prompting on unreadable times.
func DefaultRules() Rules {
	return Rules{MinPartySize: 1, MaxPartySize: 50, MaxAlternatives: availability.DefaultMaxAlternatives}
}

// Service runs the reservation flow.
type Service struct {
	engine    *availability.Engine
	parser    *nlparse.Parser
	sink      BookingSink
	publisher Publisher
	fsm       *dialog.FSM
	rules     Rules
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewService creates a reservation flow service.
func NewService(engine *availability.Engine, parser *nlparse.Parser, sink BookingSink, rules Rules, logger *zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		parser: parser,
		sink:   sink,
		fsm:    dialog.NewFSM(),
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// WithPublisher attaches an event publisher.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Route hands the caller to the desk their utterance asks for.
func (s *Service) Route(sess *session.Session, utterance string) Result {
	s.touch(sess)

	role, ok := dialog.RouteIntent(utterance)
	if !ok {
		return Result{
			Message: "Would you like to place an order or make a table reservation?",
			Outcome: OutcomeReprompt,
			Err:     ErrUnknownIntent,
		}
	}

	if role != sess.Role {
		next, ok := s.fsm.Transition(sess.Role, role)
		if !ok {
			return Result{Message: dialog.Greeting[sess.Role], Outcome: OutcomeReprompt, Err: ErrUnknownIntent}
		}
		s.logger.Info().Str("session", sess.ID).Str("from", string(sess.Role)).Str("to", string(next)).Msg("role transfer")
		sess.Role = next
	}

	return Result{Message: dialog.Greeting[sess.Role], Outcome: OutcomeRouted}
}

// UpdateName records the caller's name.
func (s *Service) UpdateName(sess *session.Session, name string) Result {
	s.touch(sess)

	name = strings.TrimSpace(name)
	if name == "" {
		return Result{
			Message: "May I have your name for the reservation?",
			Outcome: OutcomeReprompt,
			Err:     &IncompleteError{Missing: []string{"name"}},
		}
	}

	sess.CustomerName = name
	s.logger.Info().Str("session", sess.ID).Msg("customer name updated")
	return Result{Message: fmt.Sprintf("Thank you, %s! And what's your phone number?", name), Outcome: OutcomeCollected}
}

// UpdatePhone normalizes and records the caller's phone number.
func (s *Service) UpdatePhone(sess *session.Session, phone string) Result {
	s.touch(sess)

	normalized, err := nlparse.NormalizePhone(phone)
	if err != nil {
		s.logger.Warn().Str("session", sess.ID).Str("input", phone).Msg("invalid phone number")
		return Result{
			Message: fmt.Sprintf("I'm sorry%s, I didn't catch that correctly. Could you please tell me your phone number again? Please say all the digits clearly.", nameSuffix(sess)),
			Outcome: OutcomeReprompt,
			Err:     err,
		}
	}

	sess.CustomerPhone = normalized
	s.logger.Info().Str("session", sess.ID).Str("phone", normalized).Msg("customer phone recorded")
	greeting := "Perfect!"
	if sess.CustomerName != "" {
		greeting = fmt.Sprintf("Perfect, %s!", sess.CustomerName)
	}
	return Result{
		Message: greeting + " I've got your phone number. Now, what date would you like to reserve for?",
		Outcome: OutcomeCollected,
	}
}

// CollectDate parses and stores the reservation date.
func (s *Service) CollectDate(sess *session.Session, input string) Result {
	s.touch(sess)

	date, err := s.parser.ParseDate(input)
	switch {
	case errors.Is(err, nlparse.ErrPastDate):
		return Result{
			Message: "I'm sorry, I can only make reservations for today or future dates. What date would work for you?",
			Outcome: OutcomeReprompt,
			Err:     err,
		}
	case err != nil:
		s.logger.Warn().Str("session", sess.ID).Str("input", input).Msg("could not parse date")
		return Result{
			Message: "I'm sorry, I didn't quite catch that date. Could you please say the date again? For example, 'tomorrow' or 'this Friday'.",
			Outcome: OutcomeReprompt,
			Err:     err,
		}
	}

	sess.Date = date.Format(models.DateLayout)
	s.draftChanged(sess)

	spoken := nlparse.FormatDateForSpeech(date)
	s.logger.Info().Str("session", sess.ID).Str("date", sess.Date).Msg("reservation date set")
	return Result{Message: fmt.Sprintf("Perfect! So that's %s. What time would you prefer?", spoken), Outcome: OutcomeCollected}
}

// CollectTime parses, rounds and stores the reservation time.
func (s *Service) CollectTime(sess *session.Session, input string) Result {
	s.touch(sess)

	t, ok := nlparse.ParseTime(input)
	if !ok && !s.rules.TimeFallback {
		return Result{
			Message: "I'm sorry, I didn't catch the time. Could you say it again, for example '7 PM' or '7:30'?",
			Outcome: OutcomeReprompt,
			Err:     ErrTimeFallback,
		}
	}

	rule := s.engine.Rule()
	if !rule.IsBookable(t) {
		return Result{
			Message: fmt.Sprintf("I'm sorry, we take reservations from %s to %s. What time within those hours works for you?",
				nlparse.FormatTimeForSpeech(rule.Open.String()), nlparse.FormatTimeForSpeech(rule.Close.String())),
			Outcome: OutcomeReprompt,
			Err:     ErrOutsideHours,
		}
	}

	sess.Time = t.String()
	s.draftChanged(sess)

	s.logger.Info().Str("session", sess.ID).Str("time", sess.Time).Bool("fallback", !ok).Msg("reservation time set")
	return Result{
		Message: fmt.Sprintf("Great! So that's %s. How many people will be dining with us?", nlparse.FormatTimeForSpeech(sess.Time)),
		Outcome: OutcomeCollected,
	}
}

// CollectPartySize parses a spoken head count and stores it.
func (s *Service) CollectPartySize(sess *session.Session, input string) Result {
	n, err := nlparse.ParsePartySize(input)
	if err != nil {
		s.touch(sess)
		return Result{Message: "I'm sorry, how many people will be dining?", Outcome: OutcomeReprompt, Err: err}
	}
	return s.SetPartySize(sess, n)
}

// SetPartySize validates and stores the party size.
func (s *Service) SetPartySize(sess *session.Session, n int) Result {
	s.touch(sess)

	if n < s.rules.MinPartySize {
		return Result{
			Message: fmt.Sprintf("I'm sorry, the minimum party size is %d. How many people will be dining?", s.rules.MinPartySize),
			Outcome: OutcomeReprompt,
			Err:     &PartySizeError{Size: n, Limit: s.rules.MinPartySize},
		}
	}
	if n > s.rules.MaxPartySize {
		return Result{
			Message: fmt.Sprintf("I'm sorry, for parties larger than %d people, please call us directly at our restaurant "+
				"so we can arrange special seating. Would you like to make a reservation for a smaller party?", s.rules.MaxPartySize),
			Outcome: OutcomeReprompt,
			Err:     &PartySizeError{Size: n, Limit: s.rules.MaxPartySize, TooLarge: true},
		}
	}

	sess.PartySize = n
	s.draftChanged(sess)
	s.logger.Info().Str("session", sess.ID).Int("party_size", n).Msg("party size set")

	if missing := sess.Missing(); len(missing) > 0 {
		return Result{
			Message: fmt.Sprintf("Got it, party of %d. I still need the %s for your reservation.", n, joinAnd(missing)),
			Outcome: OutcomeCollected,
		}
	}
	return Result{Message: fmt.Sprintf("Perfect! Party of %d. Let me check availability for you.", n), Outcome: OutcomeCollected}
}

// CheckAvailability checks the requested slot and, when it is full, offers alternatives.
func (s *Service) CheckAvailability(ctx context.Context, sess *session.Session) Result {
	s.touch(sess)

	req, res, ok := s.request(sess, "I still need the following information: %s.")
	if !ok {
		return res
	}

	seats, err := s.engine.AvailableSeats(ctx, req.date, req.time, s.engine.DiningDuration())
	if err != nil {
		return s.unavailable(sess, err)
	}

	s.logger.Info().
		Str("session", sess.ID).
		Str("date", sess.Date).
		Str("time", sess.Time).
		Int("available", seats).
		Int("requested", req.party).
		Msg("availability check")

	if seats >= req.party {
		metrics.IncAvailabilityCheck("available")
		sess.Pending = &models.PendingReservation{
			Date:          req.date,
			Time:          sess.Time,
			PartySize:     req.party,
			FormattedDate: req.spokenDate,
			FormattedTime: req.spokenTime,
			SeatsAtCheck:  seats,
		}
		sess.ClearAlternatives()
		return Result{
			Message: fmt.Sprintf("Great news! I have availability for your party of %d on %s at %s. Would you like me to confirm this reservation?",
				req.party, req.spokenDate, req.spokenTime),
			Outcome: OutcomeAvailable,
		}
	}

	metrics.IncAvailabilityCheck("full")
	sess.Pending = nil
	lead := fmt.Sprintf("I'm sorry, %s on %s is fully booked. Let me suggest some alternative times.", req.spokenTime, req.spokenDate)
	return s.suggest(ctx, sess, req, lead)
}

// SuggestAlternatives offers the nearest open slots around the requested time.
func (s *Service) SuggestAlternatives(ctx context.Context, sess *session.Session) Result {
	s.touch(sess)

	req, res, ok := s.request(sess, "I need the %s to suggest alternatives.")
	if !ok {
		return res
	}
	return s.suggest(ctx, sess, req, "")
}

// ConfirmReservation re-checks the pending slot and commits it.
func (s *Service) ConfirmReservation(ctx context.Context, sess *session.Session) Result {
	s.touch(sess)

	if sess.CustomerPhone == "" {
		return Result{
			Message: "I need your phone number to confirm the reservation. What's your phone number?",
			Outcome: OutcomeReprompt,
			Err:     &IncompleteError{Missing: []string{"phone"}},
		}
	}
	if sess.CustomerName == "" {
		return Result{
			Message: "I need your name to confirm the reservation. May I have your name please?",
			Outcome: OutcomeReprompt,
			Err:     &IncompleteError{Missing: []string{"name"}},
		}
	}
	if sess.Pending == nil {
		sess.Restart()
		return Result{
			Message: "There's no pending reservation to confirm. Let's start over. What date would you like to reserve for?",
			Outcome: OutcomeReprompt,
			Err:     ErrNoPending,
		}
	}

	pending := *sess.Pending
	slotTime, err := models.ParseTimeOfDay(pending.Time)
	if err != nil {
		sess.Restart()
		return Result{
			Message: "I'm sorry, something went wrong with that reservation. Let's start over. What date would you like to reserve for?",
			Outcome: OutcomeReprompt,
			Err:     fmt.Errorf("%w: %v", ErrNoPending, err),
		}
	}

	// Occupancy may have changed since the check; the window between this
	// re-check and the write below is not locked.
	seats, err := s.engine.AvailableSeats(ctx, pending.Date, slotTime, s.engine.DiningDuration())
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("re-check before commit failed, committing on earlier check")
	case seats < pending.PartySize:
		s.logger.Info().Str("session", sess.ID).Int("available", seats).Int("requested", pending.PartySize).Msg("slot filled before commit")
		metrics.IncAvailabilityCheck("taken")
		sess.Pending = nil
		req := flowRequest{
			date:       pending.Date,
			time:       slotTime,
			party:      pending.PartySize,
			spokenDate: pending.FormattedDate,
			spokenTime: pending.FormattedTime,
		}
		lead := fmt.Sprintf("I'm sorry, %s on %s was just taken.", pending.FormattedTime, pending.FormattedDate)
		res := s.suggest(ctx, sess, req, lead)
		res.Err = errors.Join(ErrSlotTaken, res.Err)
		return res
	}

	now := s.now().UTC()
	booking := &models.Booking{
		ID:             uuid.NewString(),
		Phone:          sess.CustomerPhone,
		CustomerName:   sess.CustomerName,
		PartySize:      pending.PartySize,
		BookingDate:    time.Date(pending.Date.Year(), pending.Date.Month(), pending.Date.Day(), 0, 0, 0, 0, time.UTC),
		BookingTime:    pending.Time,
		DiningDuration: s.engine.DiningDuration(),
		Status:         models.StatusConfirmed,
		CreatedAt:      now,
		ModifiedAt:     now,
	}
	payload := events.ReservationPayload{
		BookingID: booking.ID,
		SessionID: sess.ID,
		Phone:     booking.Phone,
		Name:      booking.CustomerName,
		Date:      booking.BookingDate.Format(models.DateLayout),
		Time:      booking.BookingTime,
		PartySize: booking.PartySize,
		Status:    string(booking.Status),
	}

	if err := s.sink.SaveBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID).Str("booking_id", booking.ID).Msg("reservation accepted but not persisted")
		metrics.IncStoreError("save_booking")
		metrics.IncReservationConfirmed(false)
		s.publish(events.ReservationUnsaved, payload)
		return Result{
			Message:   fmt.Sprintf("Your reservation is confirmed for %s at %s. Thank you!", pending.FormattedDate, pending.FormattedTime),
			Outcome:   OutcomeConfirmedUnsaved,
			BookingID: booking.ID,
			Err:       fmt.Errorf("%w: %v", ErrPersistence, err),
		}
	}

	customer := models.Customer{Phone: booking.Phone, Name: booking.CustomerName, LastSeen: now}
	if err := s.sink.UpsertCustomer(ctx, customer); err != nil {
		s.logger.Warn().Err(err).Str("phone", booking.Phone).Msg("customer upsert failed")
		metrics.IncStoreError("upsert_customer")
	}

	metrics.IncReservationConfirmed(true)
	s.publish(events.ReservationConfirmed, payload)
	s.logger.Info().
		Str("session", sess.ID).
		Str("booking_id", booking.ID).
		Str("date", payload.Date).
		Str("time", booking.BookingTime).
		Int("party_size", booking.PartySize).
		Msg("reservation confirmed")

	sess.Pending = nil
	sess.ClearAlternatives()

	return Result{
		Message: fmt.Sprintf("Excellent! Your reservation is confirmed, %s. We'll see you on %s at %s for %d people. "+
			"We look forward to serving you! Is there anything else I can help you with?",
			sess.CustomerName, pending.FormattedDate, pending.FormattedTime, pending.PartySize),
		Outcome:   OutcomeConfirmed,
		BookingID: booking.ID,
	}
}

// Summary reads back the pending reservation.
func (s *Service) Summary(sess *session.Session) Result {
	s.touch(sess)

	if sess.Pending == nil {
		return Result{
			Message: "There's no pending reservation yet. What date would you like to reserve for?",
			Outcome: OutcomeReprompt,
			Err:     ErrNoPending,
		}
	}

	p := sess.Pending
	return Result{
		Message: fmt.Sprintf("Here are your reservation details. Name: %s. Phone number: %s. Date: %s. Time: %s. Party size: %d people. "+
			"Would you like to confirm this reservation?",
			orNotProvided(sess.CustomerName), orNotProvided(sess.CustomerPhone), p.FormattedDate, p.FormattedTime, p.PartySize),
		Outcome: OutcomeSummary,
	}
}

// Restart discards the reservation draft.
func (s *Service) Restart(sess *session.Session) Result {
	s.touch(sess)
	sess.Restart()
	return Result{Message: "No problem, let's start over. What date would you like to reserve for?", Outcome: OutcomeCollected}
}

type flowRequest struct {
	date       time.Time
	time       models.TimeOfDay
	party      int
	spokenDate string
	spokenTime string
}

// request assembles the collected fields, or a re-prompt naming what is missing.
func (s *Service) request(sess *session.Session, missingFormat string) (flowRequest, Result, bool) {
	if missing := sess.Missing(); len(missing) > 0 {
		return flowRequest{}, Result{
			Message: fmt.Sprintf(missingFormat, strings.Join(missing, ", ")),
			Outcome: OutcomeReprompt,
			Err:     &IncompleteError{Missing: missing},
		}, false
	}

	date, derr := time.ParseInLocation(models.DateLayout, sess.Date, s.parser.Location())
	t, terr := models.ParseTimeOfDay(sess.Time)
	if err := errors.Join(derr, terr); err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID).Msg("corrupt session draft")
		sess.Restart()
		return flowRequest{}, Result{
			Message: "I'm sorry, I lost track of your reservation details. What date would you like to reserve for?",
			Outcome: OutcomeReprompt,
			Err:     &IncompleteError{Missing: sess.Missing()},
		}, false
	}

	return flowRequest{
		date:       date,
		time:       t,
		party:      sess.PartySize,
		spokenDate: nlparse.FormatDateForSpeech(date),
		spokenTime: nlparse.FormatTimeForSpeech(sess.Time),
	}, Result{}, true
}

func (s *Service) suggest(ctx context.Context, sess *session.Session, req flowRequest, lead string) Result {
	candidates, err := s.engine.FindAvailableSlots(ctx, req.date, req.party, &req.time)
	if err != nil {
		return s.unavailable(sess, err)
	}

	shortlist := availability.Rank(candidates, &req.time, s.rules.MaxAlternatives)
	metrics.ObserveAlternatives(len(shortlist.Candidates))

	sess.AlternativesSearched = true
	sess.Alternatives = sess.Alternatives[:0]
	spoken := make([]string, 0, len(shortlist.Candidates))
	for _, t := range shortlist.Times() {
		sess.Alternatives = append(sess.Alternatives, t.String())
		spoken = append(spoken, nlparse.FormatTimeForSpeech(t.String()))
	}

	if shortlist.NoAlternatives() {
		return Result{
			Message: prefix(lead, fmt.Sprintf("Unfortunately, we're fully booked for %s. Would you like to try a different date?", req.spokenDate)),
			Outcome: OutcomeNoAlternatives,
			Err:     ErrNoAvailability,
		}
	}

	s.logger.Info().Str("session", sess.ID).Strs("alternatives", sess.Alternatives).Msg("suggesting alternatives")
	return Result{
		Message: prefix(lead, fmt.Sprintf("I have availability at %s. Which time would work better for you?", availability.JoinSpoken(spoken))),
		Outcome: OutcomeAlternatives,
	}
}

func (s *Service) unavailable(sess *session.Session, err error) Result {
	metrics.IncAvailabilityCheck("error")
	metrics.IncStoreError("bookings_on_date")
	s.publish(events.AvailabilityUnreachable, map[string]string{"session_id": sess.ID, "error": err.Error()})
	return Result{
		Message: "I'm sorry, I can't check availability right now. Could you give me a moment and try again?",
		Outcome: OutcomeUnavailable,
		Err:     err,
	}
}

func (s *Service) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}

func (s *Service) touch(sess *session.Session) {
	sess.Touch(s.now())
}

// draftChanged invalidates results computed from the previous draft.
func (s *Service) draftChanged(sess *session.Session) {
	sess.Pending = nil
	sess.ClearAlternatives()
}

func nameSuffix(sess *session.Session) string {
	if sess.CustomerName == "" {
		return ""
	}
	return " " + sess.CustomerName
}

func orNotProvided(v string) string {
	if v == "" {
		return "not provided"
	}
	return v
}

func prefix(lead, msg string) string {
	if lead == "" {
		return msg
	}
	return lead + " " + msg
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
