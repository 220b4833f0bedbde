package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Homework events
	EventAssignmentCreated       EventType = "assignment.created"
	EventAssignmentUpdated       EventType = "assignment.updated"
	EventAssignmentDeleted       EventType = "assignment.deleted"
	EventAssignmentStatusChanged EventType = "assignment.status_changed"
	EventAssignmentsImported     EventType = "assignment.imported"

	// Class events
	EventClassCreated EventType = "class.created"
	EventClassUpdated EventType = "class.updated"
	EventClassDeleted EventType = "class.deleted"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventRewardSet           EventType = "achievement.reward_set"

	// Profile events
	EventProfileMerged EventType = "profile.merged"

	// Tutor events
	EventTutorSessionStarted EventType = "tutor.session_started"
	EventTutorTurnCompleted  EventType = "tutor.turn_completed"
	EventTutorSessionDeleted EventType = "tutor.session_deleted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at "at".
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Homework Events
// ═══════════════════════════════════════════════════════════════════════════

// AssignmentChangedEvent is emitted when an assignment is created, edited
// or deleted. The aggregate is the student.
type AssignmentChangedEvent struct {
	BaseEvent
	AssignmentID string `json:"assignment_id"`
	Status       string `json:"status"`
}

// Payload implements Event interface.
func (e AssignmentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id": e.AssignmentID,
		"status":        e.Status,
	}
}

// NewAssignmentCreatedEvent creates an assignment.created event.
func NewAssignmentCreatedEvent(studentID, assignmentID, status string, at time.Time) AssignmentChangedEvent {
	return AssignmentChangedEvent{
		BaseEvent:    NewBaseEvent(EventAssignmentCreated, studentID, at),
		AssignmentID: assignmentID,
		Status:       status,
	}
}

// NewAssignmentUpdatedEvent creates an assignment.updated event.
func NewAssignmentUpdatedEvent(studentID, assignmentID, status string, at time.Time) AssignmentChangedEvent {
	return AssignmentChangedEvent{
		BaseEvent:    NewBaseEvent(EventAssignmentUpdated, studentID, at),
		AssignmentID: assignmentID,
		Status:       status,
	}
}

// NewAssignmentDeletedEvent creates an assignment.deleted event.
func NewAssignmentDeletedEvent(studentID, assignmentID, status string, at time.Time) AssignmentChangedEvent {
	return AssignmentChangedEvent{
		BaseEvent:    NewBaseEvent(EventAssignmentDeleted, studentID, at),
		AssignmentID: assignmentID,
		Status:       status,
	}
}

// AssignmentStatusChangedEvent is emitted after an assignment's status is set.
// The aggregate is the student so subscribers can key caches by student.
type AssignmentStatusChangedEvent struct {
	BaseEvent
	AssignmentID string `json:"assignment_id"`
	From         string `json:"from"`
	To           string `json:"to"`
}

// Payload implements Event interface.
func (e AssignmentStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id": e.AssignmentID,
		"from":          e.From,
		"to":            e.To,
	}
}

// NewAssignmentStatusChangedEvent creates a new AssignmentStatusChangedEvent.
func NewAssignmentStatusChangedEvent(studentID, assignmentID, from, to string, at time.Time) AssignmentStatusChangedEvent {
	return AssignmentStatusChangedEvent{
		BaseEvent:    NewBaseEvent(EventAssignmentStatusChanged, studentID, at),
		AssignmentID: assignmentID,
		From:         from,
		To:           to,
	}
}

// AssignmentsImportedEvent is emitted after a bulk import.
type AssignmentsImportedEvent struct {
	BaseEvent
	Count          int `json:"count"`
	ClassesCreated int `json:"classes_created"`
}

// Payload implements Event interface.
func (e AssignmentsImportedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"count":           e.Count,
		"classes_created": e.ClassesCreated,
	}
}

// NewAssignmentsImportedEvent creates a new AssignmentsImportedEvent.
func NewAssignmentsImportedEvent(studentID string, count, classesCreated int, at time.Time) AssignmentsImportedEvent {
	return AssignmentsImportedEvent{
		BaseEvent:      NewBaseEvent(EventAssignmentsImported, studentID, at),
		Count:          count,
		ClassesCreated: classesCreated,
	}
}

// ClassChangedEvent is emitted when a class is created, edited or deleted.
// The aggregate is the student.
type ClassChangedEvent struct {
	BaseEvent
	ClassID string `json:"class_id"`
	Name    string `json:"name"`
}

// Payload implements Event interface.
func (e ClassChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id": e.ClassID,
		"name":     e.Name,
	}
}

// NewClassChangedEvent creates a class event of the given type.
func NewClassChangedEvent(eventType EventType, studentID, classID, name string, at time.Time) ClassChangedEvent {
	return ClassChangedEvent{
		BaseEvent: NewBaseEvent(eventType, studentID, at),
		ClassID:   classID,
		Name:      name,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted once per badge transition to unlocked.
type AchievementUnlockedEvent struct {
	BaseEvent
	Badge  string `json:"badge"`
	Reward string `json:"reward,omitempty"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge":  e.Badge,
		"reward": e.Reward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(studentID, badge, reward string, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent: NewBaseEvent(EventAchievementUnlocked, studentID, at),
		Badge:     badge,
		Reward:    reward,
	}
}

// RewardSetEvent is emitted when a parent attaches a reward to a badge.
type RewardSetEvent struct {
	BaseEvent
	Badge  string `json:"badge"`
	Reward string `json:"reward"`
}

// Payload implements Event interface.
func (e RewardSetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge":  e.Badge,
		"reward": e.Reward,
	}
}

// NewRewardSetEvent creates a new RewardSetEvent.
func NewRewardSetEvent(studentID, badge, reward string, at time.Time) RewardSetEvent {
	return RewardSetEvent{
		BaseEvent: NewBaseEvent(EventRewardSet, studentID, at),
		Badge:     badge,
		Reward:    reward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile & Tutor Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileMergedEvent is emitted after a tutor observation is merged.
type ProfileMergedEvent struct {
	BaseEvent
	TurnID      string   `json:"turn_id"`
	Contributor string   `json:"contributor"`
	Fields      []string `json:"fields"`
	Version     int64    `json:"version"`
}

// Payload implements Event interface.
func (e ProfileMergedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"turn_id":     e.TurnID,
		"contributor": e.Contributor,
		"fields":      e.Fields,
		"version":     e.Version,
	}
}

// NewProfileMergedEvent creates a new ProfileMergedEvent.
func NewProfileMergedEvent(studentID, turnID, contributor string, fields []string, version int64, at time.Time) ProfileMergedEvent {
	return ProfileMergedEvent{
		BaseEvent:   NewBaseEvent(EventProfileMerged, studentID, at),
		TurnID:      turnID,
		Contributor: contributor,
		Fields:      fields,
		Version:     version,
	}
}

// TutorSessionStartedEvent is emitted when a conversation is opened.
type TutorSessionStartedEvent struct {
	BaseEvent
	ConversationID string `json:"conversation_id"`
	PersonaID      string `json:"persona_id"`
	Style          string `json:"style"`
	Model          string `json:"model"`
}

// Payload implements Event interface.
func (e TutorSessionStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"conversation_id": e.ConversationID,
		"persona_id":      e.PersonaID,
		"style":           e.Style,
		"model":           e.Model,
	}
}

// NewTutorSessionStartedEvent creates a new TutorSessionStartedEvent.
func NewTutorSessionStartedEvent(studentID, conversationID, personaID, style, model string, at time.Time) TutorSessionStartedEvent {
	return TutorSessionStartedEvent{
		BaseEvent:      NewBaseEvent(EventTutorSessionStarted, studentID, at),
		ConversationID: conversationID,
		PersonaID:      personaID,
		Style:          style,
		Model:          model,
	}
}

// TutorTurnCompletedEvent is emitted after an assistant reply is appended.
type TutorTurnCompletedEvent struct {
	BaseEvent
	ConversationID string `json:"conversation_id"`
	TurnID         string `json:"turn_id"`
	Structured     bool   `json:"structured"`
}

// Payload implements Event interface.
func (e TutorTurnCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"conversation_id": e.ConversationID,
		"turn_id":         e.TurnID,
		"structured":      e.Structured,
	}
}

// NewTutorTurnCompletedEvent creates a new TutorTurnCompletedEvent.
func NewTutorTurnCompletedEvent(studentID, conversationID, turnID string, structured bool, at time.Time) TutorTurnCompletedEvent {
	return TutorTurnCompletedEvent{
		BaseEvent:      NewBaseEvent(EventTutorTurnCompleted, studentID, at),
		ConversationID: conversationID,
		TurnID:         turnID,
		Structured:     structured,
	}
}

// TutorSessionDeletedEvent is emitted after a conversation is removed.
type TutorSessionDeletedEvent struct {
	BaseEvent
	ConversationID string `json:"conversation_id"`
}

// Payload implements Event interface.
func (e TutorSessionDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"conversation_id": e.ConversationID}
}

// NewTutorSessionDeletedEvent creates a new TutorSessionDeletedEvent.
func NewTutorSessionDeletedEvent(studentID, conversationID string, at time.Time) TutorSessionDeletedEvent {
	return TutorSessionDeletedEvent{
		BaseEvent:      NewBaseEvent(EventTutorSessionDeleted, studentID, at),
		ConversationID: conversationID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
