package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveEvent() Event {
	return Event{
		ID:                1,
		Mode:              EventModeRegistration,
		RegistrationStart: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		RegistrationEnd:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		EventStart:        time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		EventEnd:          time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC),
	}
}

func admissionReason(t *testing.T, err error) EligibilityReason {
	t.Helper()

	var elig *EligibilityError
	require.ErrorAs(t, err, &elig)
	return elig.Reason
}

func TestCheckAdmission(t *testing.T) {
	during := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	validated := during.Add(-time.Hour)

	tests := []struct {
		name    string
		subject Subject
		mutate  func(*Event)
		now     time.Time
		want    EligibilityReason
	}{
		{
			name:    "eligible",
			subject: Subject{Kind: SubjectRegistration, Type: ParticipantMember},
			now:     during,
			want:    "",
		},
		{
			name:    "cancelled event refuses everyone",
			subject: Subject{Type: ParticipantMember},
			mutate:  func(ev *Event) { ev.Cancelled = true },
			now:     during,
			want:    ReasonEventCancelled,
		},
		{
			name:    "before event start",
			subject: Subject{Type: ParticipantMember},
			now:     time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
			want:    ReasonOutsideWindow,
		},
		{
			name:    "after event end",
			subject: Subject{Type: ParticipantMember},
			now:     time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC),
			want:    ReasonOutsideWindow,
		},
		{
			name:    "wrong participant group",
			subject: Subject{Type: ParticipantGuest},
			mutate:  func(ev *Event) { ev.AllowedTypes = []ParticipantType{ParticipantMember} },
			now:     during,
			want:    ReasonWrongGroup,
		},
		{
			name:    "cancelled subject",
			subject: Subject{Type: ParticipantMember, Cancelled: true, Terminal: true},
			now:     during,
			want:    ReasonSubjectCancelled,
		},
		{
			name: "already validated",
			subject: Subject{
				Type:        ParticipantMember,
				Terminal:    true,
				ValidatedAt: &validated,
			},
			now:  during,
			want: ReasonAlreadyValidated,
		},
		{
			name:    "unpaid ticket",
			subject: Subject{Kind: SubjectTicket, Type: ParticipantGuest, Pending: true},
			now:     during,
			want:    ReasonNotActivated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := liveEvent()
			if tt.mutate != nil {
				tt.mutate(&ev)
			}

			err := CheckAdmission(tt.subject, ev, tt.now)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, admissionReason(t, err))
		})
	}
}

// The cancellation check outranks everything else, and the window check
// outranks subject state. A validated subject at a cancelled event is
// reported as event_cancelled, not already_validated.
func TestCheckAdmission_ShortCircuitOrder(t *testing.T) {
	during := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	ev := liveEvent()
	ev.Cancelled = true
	ev.AllowedTypes = []ParticipantType{ParticipantMember}

	sub := Subject{Type: ParticipantGuest, Terminal: true, Cancelled: true}

	err := CheckAdmission(sub, ev, during)
	assert.Equal(t, ReasonEventCancelled, admissionReason(t, err))

	ev.Cancelled = false
	err = CheckAdmission(sub, ev, during.Add(24*time.Hour))
	assert.Equal(t, ReasonOutsideWindow, admissionReason(t, err))

	err = CheckAdmission(sub, ev, during)
	assert.Equal(t, ReasonWrongGroup, admissionReason(t, err))
}

func TestCheckIntake(t *testing.T) {
	ev := liveEvent()

	err := CheckIntake(ev, ParticipantMember, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)

	err = CheckIntake(ev, ParticipantMember, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ReasonOutsideWindow, admissionReason(t, err))

	err = CheckIntake(ev, ParticipantMember, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, ReasonOutsideWindow, admissionReason(t, err))

	ev.AllowedTypes = []ParticipantType{ParticipantInvitee}
	err = CheckIntake(ev, ParticipantGuest, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ReasonWrongGroup, admissionReason(t, err))
}

func TestEventAllowsType_EmptyMeansUnrestricted(t *testing.T) {
	ev := Event{}
	assert.True(t, ev.AllowsType(ParticipantMember))
	assert.True(t, ev.AllowsType(ParticipantGuest))

	ev.AllowedTypes = []ParticipantType{ParticipantMember, ParticipantInvitee}
	assert.True(t, ev.AllowsType(ParticipantInvitee))
	assert.False(t, ev.AllowsType(ParticipantGuest))
}
