package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Clone_Deep(t *testing.T) {
	instr := "fragile"
	route := "I-94"
	now := time.Now().UTC()
	l := &Load{
		ID:     "DR-1",
		Status: LoadStatusConfirmed,
		Detail: &LoadDetail{
			SpecialInstructions: &instr,
			Recommendations:     Recommendations{Route: &route},
			DispatchNotes:       []string{"BOL required at pickup."},
			PickupTimeActual:    &now,
		},
	}

	c := l.Clone()
	require.Equal(t, l, c)

	*c.Detail.SpecialInstructions = "changed"
	*c.Detail.Recommendations.Route = "changed"
	c.Detail.DispatchNotes[0] = "changed"
	c.Status = LoadStatusDelivered

	require.Equal(t, "fragile", *l.Detail.SpecialInstructions)
	require.Equal(t, "I-94", *l.Detail.Recommendations.Route)
	require.Equal(t, "BOL required at pickup.", l.Detail.DispatchNotes[0])
	require.Equal(t, LoadStatusConfirmed, l.Status)
}

func TestLoad_Clone_Nil(t *testing.T) {
	var l *Load
	require.Nil(t, l.Clone())

	c := (&Load{ID: "x"}).Clone()
	require.Nil(t, c.Detail)
}
