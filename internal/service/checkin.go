package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/facematch"
	"github.com/attendly/attendly/internal/notifier"
	"github.com/attendly/attendly/internal/pkg/token"
	"github.com/attendly/attendly/internal/repository"
)

// DefaultFaceConfidenceThreshold rejects matches the collaborator is not
// sure enough about.
const DefaultFaceConfidenceThreshold = 0.85

type CheckinRegistrationRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Registration, error)
	FindByShortCode(ctx context.Context, eventID uint, code string) (domain.Registration, error)
	FindByVerificationCode(ctx context.Context, eventID uint, code string) (domain.Registration, error)
	FindWithPhotos(ctx context.Context, eventID uint) ([]domain.Registration, error)
	MarkAttended(ctx context.Context, id uint, method domain.ValidationMethod, at time.Time) error
}

type CheckinTicketRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Ticket, error)
	FindBySerial(ctx context.Context, eventID uint, serial string) (domain.Ticket, error)
	FindByVerificationCode(ctx context.Context, eventID uint, code string) (domain.Ticket, error)
	MarkUsed(ctx context.Context, id uint, method domain.ValidationMethod, at time.Time) error
}

type CheckinEventRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Event, error)
}

type AttendanceLog interface {
	Append(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error)
	FindByEventID(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error)
}

// Matcher is the external face-matching collaborator.
type Matcher interface {
	Match(ctx context.Context, image string, pool []facematch.Candidate) (facematch.Match, error)
}

// ValidationResult is the typed outcome of one validation attempt.
// Expected rejections (not found, already used, ineligible, low
// confidence) are outcomes, not errors; the error return of the Validate
// methods is reserved for storage and collaborator failures.
type ValidationResult struct {
	Outcome domain.ValidationOutcome `json:"outcome"`
	Method  domain.ValidationMethod  `json:"method"`
	Subject *domain.Subject          `json:"subject,omitempty"`
	Reason  string                   `json:"reason,omitempty"`

	// ValidatedAt is the commit instant on success; on AlreadyUsed it is
	// the prior validation's instant, with PriorMethod alongside, so the
	// operator can see when and how the subject was first admitted.
	ValidatedAt *time.Time               `json:"validated_at,omitempty"`
	PriorMethod *domain.ValidationMethod `json:"prior_method,omitempty"`
}

// CheckinService resolves a validation attempt to exactly one subject
// through one of the independent channels and commits the attendance
// transition exactly once.
type CheckinService struct {
	eventsRepo    CheckinEventRepository
	registrations CheckinRegistrationRepository
	tickets       CheckinTicketRepository
	attendance    AttendanceLog
	codec         *token.Codec
	matcher       Matcher
	events        EventPublisher
	threshold     float64
	now           func() time.Time
}

func NewCheckinService(
	eventsRepo CheckinEventRepository,
	registrations CheckinRegistrationRepository,
	tickets CheckinTicketRepository,
	attendance AttendanceLog,
	codec *token.Codec,
	matcher Matcher,
	events EventPublisher,
	threshold float64,
) *CheckinService {
	if threshold <= 0 {
		threshold = DefaultFaceConfidenceThreshold
	}

	return &CheckinService{
		eventsRepo:    eventsRepo,
		registrations: registrations,
		tickets:       tickets,
		attendance:    attendance,
		codec:         codec,
		matcher:       matcher,
		events:        events,
		threshold:     threshold,
		now:           time.Now,
	}
}

// ValidateToken resolves a scanned token. Decode failures never touch
// subject state; they are reported and logged to the audit trail.
func (s *CheckinService) ValidateToken(ctx context.Context, eventID uint, sealed, actor string) (ValidationResult, error) {
	claims, err := s.codec.Open(sealed)
	if err != nil {
		reason := "malformed"
		switch {
		case errors.Is(err, token.ErrForged):
			reason = "forged"
		case errors.Is(err, token.ErrExpired):
			reason = "expired"
		}

		result := ValidationResult{
			Outcome: domain.OutcomeRejectedToken,
			Method:  domain.MethodToken,
			Reason:  reason,
		}
		s.record(ctx, domain.AttendanceRecord{
			EventID: eventID,
			Method:  domain.MethodToken,
			Outcome: domain.OutcomeRejectedToken,
			Actor:   actor,
			Detail:  reason,
		})
		return result, nil
	}

	if claims.EventID != eventID {
		return s.reject(ctx, eventID, domain.MethodToken, actor, "token belongs to another event"), nil
	}

	subject, err := s.loadSubject(ctx, domain.SubjectKind(claims.Kind), claims.SubjectID)
	if err != nil {
		if isNotFound(err) {
			return s.reject(ctx, eventID, domain.MethodToken, actor, "subject not found"), nil
		}
		return ValidationResult{}, err
	}

	return s.commit(ctx, eventID, subject, domain.MethodToken, actor)
}

// ValidateCode resolves a manually keyed code. The primary short code is
// tried before the verification code; the short code is event-unique, so
// the precedence removes any ambiguity from duplicated codes.
func (s *CheckinService) ValidateCode(ctx context.Context, eventID uint, code, actor string) (ValidationResult, error) {
	event, err := s.eventsRepo.FindByID(ctx, eventID)
	if err != nil {
		return ValidationResult{}, err
	}

	subject, err := s.resolveCode(ctx, event, strings.TrimSpace(code))
	if err != nil {
		if isNotFound(err) {
			return s.reject(ctx, eventID, domain.MethodCode, actor, "no subject matches code"), nil
		}
		return ValidationResult{}, err
	}

	return s.commit(ctx, eventID, subject, domain.MethodCode, actor)
}

// resolveCode maps a keyed-in code to exactly one subject. The primary
// code (ticket serial, registration short code) is tried before the
// verification code, so a stray collision between the two spaces always
// resolves in the primary's favor. Serials are matched verbatim; the
// hand-entered codes are case-folded.
func (s *CheckinService) resolveCode(ctx context.Context, event domain.Event, code string) (domain.Subject, error) {
	folded := strings.ToUpper(code)

	if event.Mode == domain.EventModeTicketed {
		t, err := s.tickets.FindBySerial(ctx, event.ID, code)
		if err == nil {
			return t.AsSubject(), nil
		}
		if !isNotFound(err) {
			return domain.Subject{}, err
		}

		t, err = s.tickets.FindByVerificationCode(ctx, event.ID, folded)
		if err != nil {
			return domain.Subject{}, err
		}
		return t.AsSubject(), nil
	}

	r, err := s.registrations.FindByShortCode(ctx, event.ID, folded)
	if err == nil {
		return r.AsSubject(), nil
	}
	if !isNotFound(err) {
		return domain.Subject{}, err
	}

	r, err = s.registrations.FindByVerificationCode(ctx, event.ID, folded)
	if err != nil {
		return domain.Subject{}, err
	}
	return r.AsSubject(), nil
}

// ValidateFace delegates to the face-matching collaborator with a
// candidate pool scoped to the event. A match below the confidence
// threshold or pointing outside the event is rejected without touching
// any subject.
func (s *CheckinService) ValidateFace(ctx context.Context, eventID uint, image, actor string) (ValidationResult, error) {
	candidates, err := s.registrations.FindWithPhotos(ctx, eventID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("s.registrations.FindWithPhotos -> %w", err)
	}

	pool := make([]facematch.Candidate, len(candidates))
	for i, c := range candidates {
		pool[i] = facematch.Candidate{
			SubjectID: c.ID,
			PhotoRef:  c.PhotoRef,
		}
	}

	match, err := s.matcher.Match(ctx, image, pool)
	if err != nil {
		if errors.Is(err, facematch.ErrNoMatch) {
			return s.reject(ctx, eventID, domain.MethodFace, actor, "no candidate matched"), nil
		}
		return ValidationResult{}, fmt.Errorf("s.matcher.Match -> %w", err)
	}

	if match.Confidence < s.threshold {
		result := ValidationResult{
			Outcome: domain.OutcomeLowConfidence,
			Method:  domain.MethodFace,
			Reason:  fmt.Sprintf("confidence %.2f below threshold %.2f", match.Confidence, s.threshold),
		}
		s.record(ctx, domain.AttendanceRecord{
			EventID: eventID,
			Method:  domain.MethodFace,
			Outcome: domain.OutcomeLowConfidence,
			Actor:   actor,
			Detail:  result.Reason,
		})
		return result, nil
	}

	registration, err := s.registrations.FindByID(ctx, match.SubjectID)
	if err != nil {
		if isNotFound(err) {
			return s.reject(ctx, eventID, domain.MethodFace, actor, "matched subject not found"), nil
		}
		return ValidationResult{}, err
	}

	if registration.EventID != eventID {
		result := ValidationResult{
			Outcome: domain.OutcomeCrossEventMatch,
			Method:  domain.MethodFace,
			Reason:  "matched subject belongs to another event",
		}
		s.record(ctx, domain.AttendanceRecord{
			SubjectKind: domain.SubjectRegistration,
			SubjectID:   registration.ID,
			EventID:     eventID,
			Method:      domain.MethodFace,
			Outcome:     domain.OutcomeCrossEventMatch,
			Actor:       actor,
		})
		return result, nil
	}

	return s.commit(ctx, eventID, registration.AsSubject(), domain.MethodFace, actor)
}

type RosterEntry struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// CrossCheckRoster is an auxiliary gate: it confirms or flags a subject
// already resolved by another channel against an uploaded roster. It
// never resolves identity on its own and never transitions state.
func (s *CheckinService) CrossCheckRoster(ctx context.Context, eventID uint, kind domain.SubjectKind, subjectID uint, roster []RosterEntry, actor string) (bool, error) {
	subject, err := s.loadSubject(ctx, kind, subjectID)
	if err != nil {
		return false, err
	}

	for _, entry := range roster {
		if entry.Email != "" && strings.EqualFold(entry.Email, subject.Email) {
			return true, nil
		}
	}

	s.record(ctx, domain.AttendanceRecord{
		SubjectKind: subject.Kind,
		SubjectID:   subject.ID,
		EventID:     eventID,
		Method:      domain.MethodRoster,
		Outcome:     domain.OutcomeRosterMismatch,
		Actor:       actor,
		Detail:      "subject not present in roster",
	})

	return false, nil
}

func (s *CheckinService) ListAttendance(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.attendance.FindByEventID(ctx, eventID, limit, offset)
}

// commit runs the common tail of every channel: eligibility, idempotence,
// then the conditional state transition. The transition is keyed on the
// subject's current state in storage, so of two racing validations
// exactly one commits and the other reports AlreadyUsed.
func (s *CheckinService) commit(ctx context.Context, eventID uint, subject domain.Subject, method domain.ValidationMethod, actor string) (ValidationResult, error) {
	event, err := s.eventsRepo.FindByID(ctx, eventID)
	if err != nil {
		return ValidationResult{}, err
	}

	if subject.EventID != eventID {
		return s.reject(ctx, eventID, method, actor, "subject belongs to another event"), nil
	}

	now := s.now()
	if err = domain.CheckAdmission(subject, event, now); err != nil {
		var elig *domain.EligibilityError
		if !errors.As(err, &elig) {
			return ValidationResult{}, err
		}

		if elig.Reason == domain.ReasonAlreadyValidated {
			return s.alreadyUsed(ctx, subject, method, actor), nil
		}

		result := ValidationResult{
			Outcome: domain.OutcomeIneligible,
			Method:  method,
			Subject: &subject,
			Reason:  elig.Error(),
		}
		s.record(ctx, domain.AttendanceRecord{
			SubjectKind: subject.Kind,
			SubjectID:   subject.ID,
			EventID:     eventID,
			Method:      method,
			Outcome:     domain.OutcomeIneligible,
			Actor:       actor,
			Detail:      elig.Error(),
		})
		s.publish(ctx, notifier.KeyValidationFailed, map[string]interface{}{
			"event_id": eventID,
			"reason":   elig.Error(),
		})
		return result, nil
	}

	switch subject.Kind {
	case domain.SubjectRegistration:
		err = s.registrations.MarkAttended(ctx, subject.ID, method, now)
	case domain.SubjectTicket:
		err = s.tickets.MarkUsed(ctx, subject.ID, method, now)
	default:
		return ValidationResult{}, fmt.Errorf("unknown subject kind %q", subject.Kind)
	}
	if errors.Is(err, repository.ErrStateConflict) {
		// The racing validation won; report its commit, not an error.
		fresh, loadErr := s.loadSubject(ctx, subject.Kind, subject.ID)
		if loadErr != nil {
			return ValidationResult{}, loadErr
		}
		return s.alreadyUsed(ctx, fresh, method, actor), nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("attendance commit -> %w", err)
	}

	s.record(ctx, domain.AttendanceRecord{
		SubjectKind: subject.Kind,
		SubjectID:   subject.ID,
		EventID:     eventID,
		Method:      method,
		Outcome:     domain.OutcomeValidated,
		Actor:       actor,
	})
	s.publish(ctx, notifier.KeyValidationSucceeded, map[string]interface{}{
		"event_id":     eventID,
		"subject_kind": subject.Kind,
		"subject_id":   subject.ID,
		"method":       method,
	})

	subject.Terminal = true
	subject.ValidatedAt = &now
	subject.ValidationMethod = &method

	return ValidationResult{
		Outcome:     domain.OutcomeValidated,
		Method:      method,
		Subject:     &subject,
		ValidatedAt: &now,
	}, nil
}

func (s *CheckinService) alreadyUsed(ctx context.Context, subject domain.Subject, method domain.ValidationMethod, actor string) ValidationResult {
	s.record(ctx, domain.AttendanceRecord{
		SubjectKind: subject.Kind,
		SubjectID:   subject.ID,
		EventID:     subject.EventID,
		Method:      method,
		Outcome:     domain.OutcomeAlreadyUsed,
		Actor:       actor,
	})

	return ValidationResult{
		Outcome:     domain.OutcomeAlreadyUsed,
		Method:      method,
		Subject:     &subject,
		ValidatedAt: subject.ValidatedAt,
		PriorMethod: subject.ValidationMethod,
	}
}

func (s *CheckinService) reject(ctx context.Context, eventID uint, method domain.ValidationMethod, actor, detail string) ValidationResult {
	s.record(ctx, domain.AttendanceRecord{
		EventID: eventID,
		Method:  method,
		Outcome: domain.OutcomeNotFound,
		Actor:   actor,
		Detail:  detail,
	})
	s.publish(ctx, notifier.KeyValidationFailed, map[string]interface{}{
		"event_id": eventID,
		"reason":   detail,
	})

	return ValidationResult{
		Outcome: domain.OutcomeNotFound,
		Method:  method,
		Reason:  detail,
	}
}

func (s *CheckinService) loadSubject(ctx context.Context, kind domain.SubjectKind, id uint) (domain.Subject, error) {
	switch kind {
	case domain.SubjectRegistration:
		r, err := s.registrations.FindByID(ctx, id)
		if err != nil {
			return domain.Subject{}, err
		}
		return r.AsSubject(), nil
	case domain.SubjectTicket:
		t, err := s.tickets.FindByID(ctx, id)
		if err != nil {
			return domain.Subject{}, err
		}
		return t.AsSubject(), nil
	default:
		return domain.Subject{}, repository.ErrRegistrationNotFound
	}
}

// record appends to the audit trail. The trail is how failed attempts are
// retained for anomaly detection, but a logging failure must not fail the
// validation itself.
func (s *CheckinService) record(ctx context.Context, rec domain.AttendanceRecord) {
	rec.CreatedAt = s.now()
	if _, err := s.attendance.Append(ctx, rec); err != nil {
		zap.L().Error("failed to append attendance record",
			zap.Uint("event_id", rec.EventID),
			zap.String("outcome", string(rec.Outcome)),
			zap.Error(err),
		)
	}
}

func (s *CheckinService) publish(ctx context.Context, key string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		zap.L().Warn("failed to publish notification", zap.String("key", key), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrRegistrationNotFound) ||
		errors.Is(err, repository.ErrTicketNotFound)
}
