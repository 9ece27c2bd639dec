package domain

import (
	"fmt"
	"time"
)

type EligibilityReason string

const (
	ReasonEventCancelled   EligibilityReason = "event_cancelled"
	ReasonOutsideWindow    EligibilityReason = "outside_window"
	ReasonWrongGroup       EligibilityReason = "wrong_group"
	ReasonAlreadyValidated EligibilityReason = "already_validated"
	ReasonSubjectCancelled EligibilityReason = "subject_cancelled"
	ReasonNotActivated     EligibilityReason = "not_activated"
)

// EligibilityError carries the specific reason a subject was refused so
// operators see "event not started" vs "wrong group" vs "already used"
// distinctly, never a blanket "invalid".
type EligibilityError struct {
	Reason EligibilityReason
	Detail string
}

func (e *EligibilityError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%v: %v", e.Reason, e.Detail)
}

// CheckAdmission decides whether a subject may be admitted to the event at
// the given instant. Checks short-circuit in a fixed order; the ordering is
// part of the contract because it determines the reason users see first.
func CheckAdmission(sub Subject, ev Event, now time.Time) error {
	if ev.Cancelled {
		return &EligibilityError{Reason: ReasonEventCancelled}
	}

	start, end := ev.AdmissionWindow()
	if now.Before(start) {
		return &EligibilityError{Reason: ReasonOutsideWindow, Detail: "event has not started"}
	}
	if now.After(end) {
		return &EligibilityError{Reason: ReasonOutsideWindow, Detail: "event has ended"}
	}

	if !ev.AllowsType(sub.Type) {
		return &EligibilityError{
			Reason: ReasonWrongGroup,
			Detail: fmt.Sprintf("participant type %q not admitted", sub.Type),
		}
	}

	if sub.Cancelled {
		return &EligibilityError{Reason: ReasonSubjectCancelled}
	}
	if sub.Terminal {
		return &EligibilityError{Reason: ReasonAlreadyValidated}
	}
	if sub.Pending {
		return &EligibilityError{Reason: ReasonNotActivated, Detail: "payment not confirmed"}
	}

	return nil
}

// CheckIntake decides whether a new subject may be created right now:
// sign-up for registration events, ticket purchase for ticketed events.
func CheckIntake(ev Event, pt ParticipantType, now time.Time) error {
	if ev.Cancelled {
		return &EligibilityError{Reason: ReasonEventCancelled}
	}

	start, end := ev.IntakeWindow()
	if now.Before(start) {
		return &EligibilityError{Reason: ReasonOutsideWindow, Detail: "window has not opened"}
	}
	if now.After(end) {
		return &EligibilityError{Reason: ReasonOutsideWindow, Detail: "window has closed"}
	}

	if !ev.AllowsType(pt) {
		return &EligibilityError{
			Reason: ReasonWrongGroup,
			Detail: fmt.Sprintf("participant type %q not admitted", pt),
		}
	}

	return nil
}
