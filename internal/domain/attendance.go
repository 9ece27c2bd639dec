package domain

import "time"

type ValidationMethod string

const (
	MethodToken  ValidationMethod = "token"
	MethodCode   ValidationMethod = "code"
	MethodFace   ValidationMethod = "face"
	MethodRoster ValidationMethod = "roster"
)

type ValidationOutcome string

const (
	OutcomeValidated       ValidationOutcome = "validated"
	OutcomeAlreadyUsed     ValidationOutcome = "already_used"
	OutcomeNotFound        ValidationOutcome = "not_found"
	OutcomeRejectedToken   ValidationOutcome = "rejected_token"
	OutcomeIneligible      ValidationOutcome = "ineligible"
	OutcomeLowConfidence   ValidationOutcome = "low_confidence"
	OutcomeCrossEventMatch ValidationOutcome = "cross_event_match"
	OutcomeRosterMismatch  ValidationOutcome = "roster_mismatch"
)

// AttendanceRecord is the append-only audit trail of every validation
// attempt, successful or not. Records are never mutated and outlive the
// subject they describe.
type AttendanceRecord struct {
	ID          uint              `json:"id"`
	SubjectKind SubjectKind       `json:"subject_kind"`
	SubjectID   uint              `json:"subject_id"`
	EventID     uint              `json:"event_id"`
	Method      ValidationMethod  `json:"method"`
	Outcome     ValidationOutcome `json:"outcome"`
	Actor       string            `json:"actor"`
	Detail      string            `json:"detail,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
