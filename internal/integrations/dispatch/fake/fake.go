package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

const DefaultPin = "1234"

// opConfirmBatch влияет только на задержку: для FaultPolicy это тот же OpConfirmLoads.
const opConfirmBatch = "confirm_batch"

// Штатные задержки операций, примерно как у API диспетчерской. Масштабируются через WithDelayScale.
var defaultDelays = map[string]time.Duration{
	OpFetchAll:           1000 * time.Millisecond,
	OpFetchDetail:        800 * time.Millisecond,
	OpCheckPin:           0,
	OpConfirmLoads:       1500 * time.Millisecond,
	opConfirmBatch:       2000 * time.Millisecond,
	OpRejectLoad:         500 * time.Millisecond,
	OpConfirmPickup:      1200 * time.Millisecond,
	OpCompleteDelivery:   1000 * time.Millisecond,
	OpSubmitReassignment: 900 * time.Millisecond,
}

// Backend: бэкенд в памяти вместо будущего API диспетчерской.
// Реализует DataSource, PinValidator и ActionGateway реестра грузов.
type Backend struct {
	pin        string
	delayScale float64
	faults     FaultPolicy
	now        func() time.Time

	mu            sync.Mutex
	order         []string
	loads         map[string]*models.Load
	details       map[string]*models.LoadDetail
	proofs        []models.DeliveryProof
	reassignments []models.ReassignmentRequest
}

// New создаёт бэкенд с демонстрационными грузами.
func New() *Backend {
	b := NewEmpty()
	for _, l := range SampleLoads(b.now()) {
		b.put(l, SampleDetail(l))
	}
	return b
}

func NewEmpty() *Backend {
	return &Backend{
		pin:     DefaultPin,
		faults:  NoFaults{},
		now:     time.Now,
		loads:   make(map[string]*models.Load),
		details: make(map[string]*models.LoadDetail),
	}
}

func (b *Backend) WithPin(pin string) *Backend {
	if pin != "" {
		b.pin = pin
	}
	return b
}

// WithDelayScale: 0 без задержек (тесты), 1 штатные задержки.
func (b *Backend) WithDelayScale(scale float64) *Backend {
	if scale >= 0 {
		b.delayScale = scale
	}
	return b
}

func (b *Backend) WithFaults(p FaultPolicy) *Backend {
	if p == nil {
		p = NoFaults{}
	}
	b.faults = p
	return b
}

// Put добавляет или заменяет грузы, как если бы диспетчер назначил их водителю.
func (b *Backend) Put(loads ...*models.Load) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range loads {
		var d *models.LoadDetail
		if l.Detail != nil {
			d = l.Clone().Detail
		} else {
			d = SampleDetail(l)
		}
		b.put(l, d)
	}
}

func (b *Backend) put(l *models.Load, d *models.LoadDetail) {
	c := l.Clone()
	c.Detail = nil
	if _, ok := b.loads[c.ID]; !ok {
		b.order = append(b.order, c.ID)
	}
	b.loads[c.ID] = c
	b.details[c.ID] = d
}

func (b *Backend) FetchAll(ctx context.Context) ([]*models.Load, error) {
	if err := b.call(ctx, OpFetchAll); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.Load, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.loads[id].Clone())
	}
	return out, nil
}

func (b *Backend) FetchDetail(ctx context.Context, loadID string) (*models.Load, error) {
	if err := b.call(ctx, OpFetchDetail); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.loads[loadID]
	if !ok {
		return nil, errors.New("Load details not found")
	}
	out := l.Clone()
	if d, ok := b.details[loadID]; ok && d != nil {
		out.Detail = (&models.Load{Detail: d}).Clone().Detail
	}
	return out, nil
}

func (b *Backend) CheckPin(ctx context.Context, pin string) (bool, error) {
	if err := b.call(ctx, OpCheckPin); err != nil {
		return false, err
	}
	return pin == b.pin, nil
}

// ConfirmLoads подтверждает пачку целиком или не подтверждает ничего.
func (b *Backend) ConfirmLoads(ctx context.Context, loadIDs []string) error {
	delayOp := OpConfirmLoads
	if len(loadIDs) > 1 {
		delayOp = opConfirmBatch
	}
	if err := b.wait(ctx, delayOp); err != nil {
		return err
	}
	if err := b.faults.Produce(OpConfirmLoads); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range loadIDs {
		l, ok := b.loads[id]
		if !ok || l.Status != models.LoadStatusUnconfirmed {
			return errors.Errorf("load %s cannot be confirmed", id)
		}
	}
	for _, id := range loadIDs {
		b.loads[id].Status = models.LoadStatusConfirmed
		b.loads[id].CurrentStage = models.LoadStagePickup
	}
	return nil
}

func (b *Backend) RejectLoad(ctx context.Context, loadID string) error {
	if err := b.call(ctx, OpRejectLoad); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.loads[loadID]
	if !ok || l.Status != models.LoadStatusUnconfirmed {
		return errors.Errorf("load %s cannot be rejected", loadID)
	}
	l.Status = models.LoadStatusRejected
	return nil
}

func (b *Backend) ConfirmPickup(ctx context.Context, loadID string) error {
	if err := b.call(ctx, OpConfirmPickup); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.loads[loadID]
	if !ok || l.Status != models.LoadStatusConfirmed || l.CurrentStage != models.LoadStagePickup {
		return errors.Errorf("pickup cannot be confirmed for load %s", loadID)
	}
	l.Status = models.LoadStatusInProgress
	l.CurrentStage = models.LoadStageInTransit
	if d := b.details[loadID]; d != nil {
		now := b.now().UTC()
		d.PickupTimeActual = &now
		d.InTransitStartTime = &now
	}
	return nil
}

func (b *Backend) CompleteDelivery(ctx context.Context, proof models.DeliveryProof) error {
	if err := b.call(ctx, OpCompleteDelivery); err != nil {
		return err
	}
	if len(proof.PhotoRefs) == 0 {
		return errors.New("Failed to submit delivery proof")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.loads[proof.LoadID]
	if !ok || l.Status != models.LoadStatusInProgress {
		return errors.Errorf("delivery cannot be completed for load %s", proof.LoadID)
	}
	l.Status = models.LoadStatusDelivered
	l.CurrentStage = models.LoadStageDelivered
	if d := b.details[proof.LoadID]; d != nil {
		d.DeliveryTimeEstimate = nil
	}
	b.proofs = append(b.proofs, proof)
	return nil
}

func (b *Backend) SubmitReassignment(ctx context.Context, req models.ReassignmentRequest) error {
	if err := b.call(ctx, OpSubmitReassignment); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.loads[req.LoadID]; !ok {
		return errors.Errorf("load %s not found", req.LoadID)
	}
	b.reassignments = append(b.reassignments, req)
	return nil
}

func (b *Backend) Proofs() []models.DeliveryProof {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.DeliveryProof(nil), b.proofs...)
}

func (b *Backend) Reassignments() []models.ReassignmentRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ReassignmentRequest(nil), b.reassignments...)
}

// call имитирует сетевой вызов: задержка, затем решение FaultPolicy.
func (b *Backend) call(ctx context.Context, op string) error {
	if err := b.wait(ctx, op); err != nil {
		return err
	}
	return b.faults.Produce(op)
}

func (b *Backend) wait(ctx context.Context, op string) error {
	if d := time.Duration(float64(defaultDelays[op]) * b.delayScale); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
