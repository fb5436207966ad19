package fake

import (
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

// SampleLoads: демонстрационный набор грузов водителя, даты относительно now.
func SampleLoads(now time.Time) []*models.Load {
	day := func(offset int, hour, min int) time.Time {
		d := now.AddDate(0, 0, offset)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, now.Location())
	}
	return []*models.Load{
		{ID: "DR-4582", PickupLocation: "Chicago, IL", DropoffLocation: "Detroit, MI",
			PickupAt: day(0, 10, 0), DropoffAt: day(1, 14, 30),
			Status: models.LoadStatusInProgress, CurrentStage: models.LoadStageInTransit},
		{ID: "DR-4585", PickupLocation: "Seattle, WA", DropoffLocation: "Portland, OR",
			PickupAt: day(0, 11, 30), DropoffAt: day(0, 18, 0),
			Status: models.LoadStatusConfirmed, CurrentStage: models.LoadStagePickup},
		{ID: "DR-4583", PickupLocation: "New York, NY", DropoffLocation: "Boston, MA",
			PickupAt: day(0, 14, 0), DropoffAt: day(0, 20, 0),
			Status: models.LoadStatusConfirmed, CurrentStage: models.LoadStagePickup},
		{ID: "DR-4586", PickupLocation: "Dallas, TX", DropoffLocation: "Houston, TX",
			PickupAt: day(0, 16, 0), DropoffAt: day(1, 9, 0),
			Status: models.LoadStatusUnconfirmed, CurrentStage: models.LoadStagePending},
		{ID: "DR-4584", PickupLocation: "Miami, FL", DropoffLocation: "Orlando, FL",
			PickupAt: day(1, 9, 0), DropoffAt: day(1, 15, 0),
			Status: models.LoadStatusConfirmed, CurrentStage: models.LoadStagePickup},
		{ID: "DR-4587", PickupLocation: "Denver, CO", DropoffLocation: "Salt Lake City, UT",
			PickupAt: day(1, 13, 0), DropoffAt: day(2, 19, 0),
			Status: models.LoadStatusUnconfirmed, CurrentStage: models.LoadStagePending},
		{ID: "DR-4588", PickupLocation: "Atlanta, GA", DropoffLocation: "Nashville, TN",
			PickupAt: day(2, 10, 30), DropoffAt: day(2, 17, 0),
			Status: models.LoadStatusConfirmed, CurrentStage: models.LoadStagePickup},
		{ID: "DR-4589", PickupLocation: "Los Angeles, CA", DropoffLocation: "San Francisco, CA",
			PickupAt: day(-1, 15, 0), DropoffAt: day(-1, 22, 0),
			Status: models.LoadStatusDelivered, CurrentStage: models.LoadStageDelivered},
	}
}

// SampleDetail строит карточку груза для демонстрационного набора.
func SampleDetail(l *models.Load) *models.LoadDetail {
	d := &models.LoadDetail{
		LoadInfo: models.LoadInfo{
			Type:       "General Freight",
			Weight:     "42,000 lbs",
			Dimensions: "53ft Trailer",
		},
		Recommendations: models.Recommendations{
			Route: ptr("Standard route recommended."),
		},
		DispatchNotes: []string{
			"Contact Shipper: John Doe at 555-123-4567 on arrival.",
			"BOL required at pickup.",
			"Standard procedure at gate.",
		},
		DocumentsAvailable: true,
	}

	switch l.ID {
	case "DR-4583":
		d.SpecialInstructions = ptr("Handle with care. Fragile items. Contact dispatch on arrival.")
	case "DR-4587":
		d.Recommendations.Route = ptr("Consider I-70 closure alerts due to weather.")
		d.Recommendations.Weather = ptr("Potential snowstorms expected in the Rockies.")
	case "DR-4582":
		d.DispatchNotes[2] = "Gate code: #1984"
	}

	if l.Status == models.LoadStatusInProgress || l.Status == models.LoadStatusDelivered {
		pickedUp := l.PickupAt.Add(15 * time.Minute)
		inTransit := l.PickupAt.Add(45 * time.Minute)
		d.PickupTimeActual = &pickedUp
		d.InTransitStartTime = &inTransit
	}
	if l.Status == models.LoadStatusInProgress {
		eta := l.DropoffAt.Add(-30 * time.Minute)
		d.DeliveryTimeEstimate = &eta
	}
	return d
}

func ptr(s string) *string { return &s }
