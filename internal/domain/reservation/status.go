package reservation

import (
	"fmt"
	"strings"

	"github.com/banquethub/service-reservation/pkg/domain"
)

// Status represents the current state of a reservation in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// AllStatuses lists every status.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled, StatusCompleted}

// Event is a lifecycle trigger.
type Event string

const (
	EventConfirm  Event = "confirm"
	EventReject   Event = "reject"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
)

// Role is the set of relationships an actor has with a reservation.
type Role uint8

const (
	RoleOwner Role = 1 << iota
	RoleRequester
	RoleSystem
)

// Has reports whether r includes every bit of want.
func (r Role) Has(want Role) bool { return want != 0 && r&want == want }

func (r Role) String() string {
	var parts []string
	if r&RoleOwner != 0 {
		parts = append(parts, "owner")
	}
	if r&RoleRequester != 0 {
		parts = append(parts, "requester")
	}
	if r&RoleSystem != 0 {
		parts = append(parts, "system")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

type transitionKey struct {
	from  Status
	event Event
}

type transitionRule struct {
	to    Status
	actor Role
}

// transitions is the lifecycle state machine. Pairs not listed are illegal.
var transitions = map[transitionKey]transitionRule{
	{StatusPending, EventConfirm}:    {StatusConfirmed, RoleOwner},
	{StatusPending, EventReject}:     {StatusRejected, RoleOwner},
	{StatusPending, EventCancel}:     {StatusCancelled, RoleRequester},
	{StatusConfirmed, EventCancel}:   {StatusCancelled, RoleRequester},
	{StatusConfirmed, EventComplete}: {StatusCompleted, RoleSystem},
}

// IsValid returns true if the status is a recognized reservation status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether the status occupies its slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	for k := range transitions {
		if k.from == s {
			return false
		}
	}
	return true
}

// Next returns the status reached by applying ev as an actor holding roles.
func (s Status) Next(ev Event, roles Role) (Status, error) {
	rule, ok := transitions[transitionKey{s, ev}]
	if !ok {
		return "", domain.NewInvalidTransitionError(string(s), string(ev), "")
	}
	if !roles.Has(rule.actor) {
		return "", domain.NewInvalidTransitionError(string(s), string(ev),
			fmt.Sprintf("requires %s, actor is %s", rule.actor, roles))
	}
	return rule.to, nil
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status. Matching is case-insensitive and
// the legacy "approved" value maps to confirmed.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "approved" {
		return StatusConfirmed, nil
	}
	status := Status(v)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reservation status: %s", s)
	}
	return status, nil
}

// ParseEvent converts a string to a caller-triggerable Event.
func ParseEvent(s string) (Event, error) {
	switch ev := Event(strings.ToLower(strings.TrimSpace(s))); ev {
	case EventConfirm, EventReject, EventCancel, EventComplete:
		return ev, nil
	}
	return "", fmt.Errorf("unknown reservation event: %s", s)
}
