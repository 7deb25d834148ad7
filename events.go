package moodlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/moodlog/store"
)

// Event names for journal events. Per-service events are prefixed with the
// service's bus name.
const (
	EventNameRecordAdded    = "moodlog.record.added"
	EventNameRecordDeleted  = "moodlog.record.deleted"
	EventNameRecordsCleared = "moodlog.records.cleared"
)

// RecordAddedEvent is published after a record is stored.
type RecordAddedEvent struct {
	RecordID  string            `json:"record_id"`
	UserID    string            `json:"user_id"`
	State     store.MentalState `json:"state"`
	Day       time.Time         `json:"day"`
	Timestamp time.Time         `json:"timestamp"`
	HasNote   bool              `json:"has_note"`
	// NewDay is set when the record opened its day's bucket.
	NewDay bool `json:"new_day"`
}

// RecordDeletedEvent is published after a record is deleted.
type RecordDeletedEvent struct {
	RecordID  string            `json:"record_id"`
	UserID    string            `json:"user_id"`
	State     store.MentalState `json:"state"`
	Day       time.Time         `json:"day"`
	DeletedAt time.Time         `json:"deleted_at"`
}

// RecordsClearedEvent is published after RemoveAll or a snapshot restore
// replaced the user's journal.
type RecordsClearedEvent struct {
	UserID    string    `json:"user_id"`
	Count     int64     `json:"count"`
	ClearedAt time.Time `json:"cleared_at"`
}

// ServiceEvents holds the events of one service, bound to its own bus.
//
//	svc.Events().RecordAdded.Subscribe(ctx, handler)
type ServiceEvents struct {
	RecordAdded    event.Event[RecordAddedEvent]
	RecordDeleted  event.Event[RecordDeletedEvent]
	RecordsCleared event.Event[RecordsClearedEvent]
}

func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		RecordAdded:    event.New[RecordAddedEvent](namePrefix + "." + EventNameRecordAdded),
		RecordDeleted:  event.New[RecordDeletedEvent](namePrefix + "." + EventNameRecordDeleted),
		RecordsCleared: event.New[RecordsClearedEvent](namePrefix + "." + EventNameRecordsCleared),
	}
}

func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.RecordAdded); err != nil {
		return fmt.Errorf("register RecordAdded: %w", err)
	}
	if err := event.Register(ctx, bus, events.RecordDeleted); err != nil {
		return fmt.Errorf("register RecordDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.RecordsCleared); err != nil {
		return fmt.Errorf("register RecordsCleared: %w", err)
	}
	return nil
}

// subscribeStatsHandlers keeps the stats cache current from events.
func (s *service) subscribeStatsHandlers(ctx context.Context) error {
	if err := s.events.RecordAdded.Subscribe(ctx, s.onRecordAdded); err != nil {
		return fmt.Errorf("subscribe RecordAdded: %w", err)
	}
	if err := s.events.RecordDeleted.Subscribe(ctx, s.onRecordDeleted); err != nil {
		return fmt.Errorf("subscribe RecordDeleted: %w", err)
	}
	if err := s.events.RecordsCleared.Subscribe(ctx, s.onRecordsCleared); err != nil {
		return fmt.Errorf("subscribe RecordsCleared: %w", err)
	}
	return nil
}

// publish sends data on ev. Failures become an *EventPublishError when
// events are fatal and go to the failure handler otherwise.
func publish[T any](ctx context.Context, s *service, ev event.Event[T], name, recordID string, data T) error {
	err := ev.Publish(ctx, data)
	if err == nil {
		return nil
	}
	if s.opts.eventErrorsFatal {
		return &EventPublishError{Event: name, RecordID: recordID, Err: err}
	}
	s.opts.safeEventPublishFailure(name, err)
	return nil
}
