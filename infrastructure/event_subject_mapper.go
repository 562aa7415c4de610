package infrastructure

import (
	"fmt"

	"megayield/events"
)

// DomainEventStream is the JetStream stream every domain event subject belongs to
const DomainEventStream = "lottery_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypeTicketPurchased:       "lottery.tickets.purchased",
	events.EventTypeRandomNumberRequested: "lottery.draws.requested",
	events.EventTypeWinnerDrawn:           "lottery.draws.winner",
	events.EventTypeFirstPaymentClaimed:   "lottery.payments.first",
	events.EventTypeVestingInitialized:    "vesting.positions.initialized",
	events.EventTypeVestingClaimed:        "vesting.positions.claimed",
	events.EventTypeYieldAccrued:          "vault.yield.accrued",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to, in event declaration order
func (m *EventSubjectMapper) GetAllSubjects() []string {
	all := events.AllEventTypes()
	subjects := make([]string, 0, len(all))
	for _, eventType := range all {
		if subject, ok := subjectsByType[eventType]; ok {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}
