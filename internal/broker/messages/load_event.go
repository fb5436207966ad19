package messages

import "time"

const (
	LoadEventConfirmed             = "load.confirmed"
	LoadEventRejected              = "load.rejected"
	LoadEventPickedUp              = "load.picked_up"
	LoadEventDelivered             = "load.delivered"
	LoadEventReassignmentRequested = "load.reassignment_requested"
)

// LoadEvent публикуется реестром после каждого применённого перехода.
type LoadEvent struct {
	EventID      string            `json:"event_id"`
	Kind         string            `json:"kind"`
	LoadID       string            `json:"load_id"`
	FromStatus   string            `json:"from_status"`
	ToStatus     string            `json:"to_status"`
	CurrentStage string            `json:"current_stage,omitempty"`
	At           time.Time         `json:"at"`
	Meta         map[string]string `json:"meta,omitempty"`
}
