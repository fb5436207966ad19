package messages

import "time"

// DispatchUpdated приходит от диспетчерской, когда назначения водителя поменялись
// (новый груз, снятие, переназначение). В ответ делаем полную пересинхронизацию.
type DispatchUpdated struct {
	DriverID string    `json:"driver_id,omitempty"`
	LoadIDs  []string  `json:"load_ids,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
