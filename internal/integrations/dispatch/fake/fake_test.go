package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestBackend_SampleData(t *testing.T) {
	b := New()
	loads, err := b.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 8)
	require.Equal(t, "DR-4582", loads[0].ID)

	var unconfirmed int
	for _, l := range loads {
		require.Nil(t, l.Detail)
		if l.Status == models.LoadStatusUnconfirmed {
			unconfirmed++
		}
	}
	require.Equal(t, 2, unconfirmed)
}

func TestBackend_FetchDetail(t *testing.T) {
	b := New()
	l, err := b.FetchDetail(context.Background(), "DR-4583")
	require.NoError(t, err)
	require.NotNil(t, l.Detail)
	require.Equal(t, "Handle with care. Fragile items. Contact dispatch on arrival.", *l.Detail.SpecialInstructions)

	// копия: изменения снаружи не видны бэкенду
	l.Detail.DispatchNotes[0] = "changed"
	again, err := b.FetchDetail(context.Background(), "DR-4583")
	require.NoError(t, err)
	require.NotEqual(t, "changed", again.Detail.DispatchNotes[0])

	_, err = b.FetchDetail(context.Background(), "nope")
	require.EqualError(t, err, "Load details not found")
}

func TestBackend_CheckPin(t *testing.T) {
	b := New().WithPin("4321")
	ok, err := b.CheckPin(context.Background(), "4321")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.CheckPin(context.Background(), DefaultPin)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBackend_ConfirmLoads_AllOrNothing(t *testing.T) {
	b := New()
	ctx := context.Background()

	err := b.ConfirmLoads(ctx, []string{"DR-4586", "DR-4585"})
	require.Error(t, err)

	loads, _ := b.FetchAll(ctx)
	for _, l := range loads {
		if l.ID == "DR-4586" {
			require.Equal(t, models.LoadStatusUnconfirmed, l.Status)
		}
	}

	require.NoError(t, b.ConfirmLoads(ctx, []string{"DR-4586", "DR-4587"}))
	loads, _ = b.FetchAll(ctx)
	for _, l := range loads {
		if l.ID == "DR-4586" || l.ID == "DR-4587" {
			require.Equal(t, models.LoadStatusConfirmed, l.Status)
			require.Equal(t, models.LoadStagePickup, l.CurrentStage)
		}
	}
}

func TestBackend_Lifecycle(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.ConfirmPickup(ctx, "DR-4585"))
	require.Error(t, b.ConfirmPickup(ctx, "DR-4585"))

	l, err := b.FetchDetail(ctx, "DR-4585")
	require.NoError(t, err)
	require.Equal(t, models.LoadStatusInProgress, l.Status)
	require.Equal(t, models.LoadStageInTransit, l.CurrentStage)
	require.NotNil(t, l.Detail.PickupTimeActual)

	require.Error(t, b.CompleteDelivery(ctx, models.DeliveryProof{LoadID: "DR-4585"}))
	require.NoError(t, b.CompleteDelivery(ctx, models.DeliveryProof{LoadID: "DR-4585", PhotoRefs: []string{"p.jpg"}}))
	require.Len(t, b.Proofs(), 1)

	require.NoError(t, b.RejectLoad(ctx, "DR-4587"))
	require.Error(t, b.RejectLoad(ctx, "DR-4587"))

	require.NoError(t, b.SubmitReassignment(ctx, models.ReassignmentRequest{LoadID: "DR-4588", Reason: models.ReassignReasonEquipmentFailure}))
	require.Error(t, b.SubmitReassignment(ctx, models.ReassignmentRequest{LoadID: "missing", Reason: "x"}))
	require.Len(t, b.Reassignments(), 1)
}

func TestBackend_Put(t *testing.T) {
	b := NewEmpty()
	b.Put(&models.Load{ID: "DR-1", Status: models.LoadStatusUnconfirmed})
	b.Put(&models.Load{ID: "DR-1", Status: models.LoadStatusConfirmed})

	loads, err := b.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 1)
	require.Equal(t, models.LoadStatusConfirmed, loads[0].Status)
}

func TestBackend_FailOps(t *testing.T) {
	want := errors.New("Network error")
	b := New().WithFaults(FailOps{OpConfirmLoads: want})

	err := b.ConfirmLoads(context.Background(), []string{"DR-4586"})
	require.ErrorIs(t, err, want)

	_, err = b.FetchAll(context.Background())
	require.NoError(t, err)
}

type constRand float64

func (r constRand) Float64() float64 { return float64(r) }

func TestRandomFaults(t *testing.T) {
	require.Error(t, NewRandomFaults(0.5, constRand(0.1)).Produce(OpFetchAll))
	require.NoError(t, NewRandomFaults(0.5, constRand(0.9)).Produce(OpFetchAll))
	require.NoError(t, NewRandomFaults(0, constRand(0)).Produce(OpFetchAll))
}

func TestBackend_DelayHonorsContext(t *testing.T) {
	b := New().WithDelayScale(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.FetchAll(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
