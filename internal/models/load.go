package models

import "time"

// Статусы груза. Incomplete встречается только для отображения, переходов в него нет.
const (
	LoadStatusUnconfirmed = "Unconfirmed"
	LoadStatusConfirmed   = "Confirmed"
	LoadStatusInProgress  = "In Progress"
	LoadStatusDelivered   = "Delivered"
	LoadStatusRejected    = "Rejected"
	LoadStatusIncomplete  = "Incomplete"
)

const (
	LoadStagePending   = "Pending"
	LoadStagePickup    = "Pickup"
	LoadStageInTransit = "In Transit"
	LoadStageDelivery  = "Delivery"
	LoadStageDelivered = "Delivered"
)

type Load struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	CurrentStage    string    `json:"currentStage"`
	PickupLocation  string    `json:"pickupLocation"`
	DropoffLocation string    `json:"dropoffLocation"`
	PickupAt        time.Time `json:"pickupAt"`
	DropoffAt       time.Time `json:"dropoffAt"`

	// Detail заполняется только при запросе карточки груза.
	Detail *LoadDetail `json:"detail,omitempty"`
}

type LoadDetail struct {
	LoadInfo             LoadInfo        `json:"loadInfo"`
	SpecialInstructions  *string         `json:"specialInstructions,omitempty"`
	Recommendations      Recommendations `json:"recommendations"`
	DispatchNotes        []string        `json:"dispatchNotes,omitempty"`
	PickupTimeActual     *time.Time      `json:"pickupTimeActual,omitempty"`
	InTransitStartTime   *time.Time      `json:"inTransitStartTime,omitempty"`
	DeliveryTimeEstimate *time.Time      `json:"deliveryTimeEstimate,omitempty"`
	DocumentsAvailable   bool            `json:"documentsAvailable"`
}

type LoadInfo struct {
	Type       string `json:"type"`
	Weight     string `json:"weight"`
	Dimensions string `json:"dimensions"`
}

type Recommendations struct {
	Temperature *string `json:"temperature,omitempty"`
	Route       *string `json:"route,omitempty"`
	Weather     *string `json:"weather,omitempty"`
}

// Clone возвращает глубокую копию, чтобы снимки состояния не делили память с реестром.
func (l *Load) Clone() *Load {
	if l == nil {
		return nil
	}
	out := *l
	if l.Detail != nil {
		d := *l.Detail
		d.SpecialInstructions = cloneString(l.Detail.SpecialInstructions)
		d.Recommendations = Recommendations{
			Temperature: cloneString(l.Detail.Recommendations.Temperature),
			Route:       cloneString(l.Detail.Recommendations.Route),
			Weather:     cloneString(l.Detail.Recommendations.Weather),
		}
		if l.Detail.DispatchNotes != nil {
			d.DispatchNotes = append([]string(nil), l.Detail.DispatchNotes...)
		}
		d.PickupTimeActual = cloneTime(l.Detail.PickupTimeActual)
		d.InTransitStartTime = cloneTime(l.Detail.InTransitStartTime)
		d.DeliveryTimeEstimate = cloneTime(l.Detail.DeliveryTimeEstimate)
		out.Detail = &d
	}
	return &out
}

// DeliveryProof: данные формы завершения доставки.
type DeliveryProof struct {
	LoadID    string
	Notes     string
	PhotoRefs []string
}

type ReassignmentRequest struct {
	LoadID  string
	Reason  string
	Details string
}

// Причины переназначения, которые предлагает форма водителя.
const (
	ReassignReasonEquipmentFailure = "Equipment Failure"
	ReassignReasonIncorrectInfo    = "Incorrect Load Information"
	ReassignReasonDriverSick       = "Driver Unavailable (Sick)"
	ReassignReasonDriverOther      = "Driver Unavailable (Other)"
	ReassignReasonLogistical       = "Logistical Issue"
	ReassignReasonOther            = "Other"
)

// LoadEvent: запись журнала переходов груза.
type LoadEvent struct {
	ID         uint64    `json:"id"`
	LoadID     string    `json:"loadId"`
	Kind       string    `json:"kind"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Payload    *string   `json:"payload,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
