package audit

import "time"

// Event types emitted by a session.
const (
	EventDoorSelected  = "door_selected"
	EventAssetPicked   = "asset_picked"
	EventWorkSaved     = "work_saved"
	EventAuditStarted  = "audit_started"
	EventAuditFinished = "audit_finished"
	EventAuditStopped  = "audit_stopped"
)

// Event is a session state change, suitable for streaming to a dashboard.
type Event struct {
	Type      string    `json:"type"`
	Tag       string    `json:"tag,omitempty"`
	RoomTag   string    `json:"room_tag,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives session events. Implementations must not block; the
// session emits synchronously from its own goroutine.
type EventSink interface {
	Emit(ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

type sinkFunc func(Event)

func (f sinkFunc) Emit(ev Event) { f(ev) }

// SinkFunc adapts a function to an EventSink.
func SinkFunc(f func(Event)) EventSink { return sinkFunc(f) }
