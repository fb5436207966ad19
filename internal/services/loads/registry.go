package loads

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/messages"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

const PinLength = 4

type DataSource interface {
	FetchAll(ctx context.Context) ([]*models.Load, error)
	FetchDetail(ctx context.Context, loadID string) (*models.Load, error)
}

type PinValidator interface {
	CheckPin(ctx context.Context, pin string) (bool, error)
}

type ActionGateway interface {
	ConfirmLoads(ctx context.Context, loadIDs []string) error
	RejectLoad(ctx context.Context, loadID string) error
	ConfirmPickup(ctx context.Context, loadID string) error
	CompleteDelivery(ctx context.Context, proof models.DeliveryProof) error
	SubmitReassignment(ctx context.Context, req models.ReassignmentRequest) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// DetailInvalidator реализуют источники, которые кэшируют карточки грузов.
type DetailInvalidator interface {
	InvalidateDetail(ctx context.Context, loadID string) error
}

// State: снимок реестра для UI/API. Все грузы скопированы.
type State struct {
	Confirmed              []*models.Load `json:"confirmed"`
	Unconfirmed            []*models.Load `json:"unconfirmed"`
	Detail                 *models.Load   `json:"currentLoadDetails,omitempty"`
	ListLoading            bool           `json:"isLoading"`
	DetailLoading          bool           `json:"isLoadingDetails"`
	Updating               bool           `json:"isUpdating"`
	RequestingReassignment bool           `json:"isRequestingReassignment"`
	ListError              string         `json:"error,omitempty"`
	DetailError            string         `json:"detailError,omitempty"`
	ReassignmentError      string         `json:"reassignmentError,omitempty"`
}

type entry struct {
	load *models.Load
	// seq задаёт порядок внутри списка: при переходе в confirmed груз уходит в конец.
	seq uint64
}

// Registry хранит грузы водителя в одном индексе по id.
// Списки confirmed/unconfirmed и статус карточки являются производными представлениями индекса.
type Registry struct {
	src  DataSource
	pins PinValidator
	gw   ActionGateway

	pub   Publisher
	topic string
	now   func() time.Time

	mu     sync.Mutex
	index  map[string]*entry
	seq    uint64
	detail *models.Load

	listLoading   int
	detailLoading int
	updating      int
	reassigning   int

	listErr     string
	detailErr   string
	reassignErr string
}

func New(src DataSource, pins PinValidator, gw ActionGateway) *Registry {
	return &Registry{
		src:   src,
		pins:  pins,
		gw:    gw,
		now:   time.Now,
		index: make(map[string]*entry),
	}
}

func (r *Registry) WithPublisher(p Publisher, topic string) *Registry {
	r.pub = p
	r.topic = topic
	return r
}

func (r *Registry) FetchLoads(ctx context.Context) error {
	r.begin(&r.listLoading, &r.listErr)

	items, err := r.src.FetchAll(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.listLoading--
	if err != nil {
		err = remote("fetch loads", err)
		r.listErr = err.Error()
		slog.Warn("fetch loads", "error", err.Error())
		return err
	}

	// Полная пересинхронизация: индекс заменяется целиком.
	index := make(map[string]*entry, len(items))
	for _, l := range items {
		if l == nil || l.ID == "" || l.Status == models.LoadStatusRejected {
			continue
		}
		r.seq++
		index[l.ID] = &entry{load: l.Clone(), seq: r.seq}
	}
	r.index = index

	slog.Info("loads fetched",
		"confirmed", len(r.viewLocked(isConfirmed)),
		"unconfirmed", len(r.viewLocked(isUnconfirmed)))
	return nil
}

func (r *Registry) ConfirmLoad(ctx context.Context, loadID, pin string) (*models.Load, error) {
	r.begin(&r.updating, &r.listErr)
	out, err := r.confirmLoad(ctx, loadID, pin)
	r.end(&r.updating, &r.listErr, err)
	return out, err
}

func (r *Registry) confirmLoad(ctx context.Context, loadID, pin string) (*models.Load, error) {
	if !r.has(loadID, isUnconfirmed) {
		return nil, errors.Wrapf(ErrNotFound, "load %s is not awaiting confirmation", loadID)
	}
	if err := validatePin(pin); err != nil {
		return nil, err
	}
	if err := r.checkPin(ctx, pin, "confirm load", ErrInvalidPin.Error()); err != nil {
		return nil, err
	}
	if err := r.gw.ConfirmLoads(ctx, []string{loadID}); err != nil {
		return nil, remote("confirm load", err)
	}

	r.mu.Lock()
	e, ok := r.index[loadID]
	if !ok || !isUnconfirmed(e.load) {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrNotFound, "load %s was confirmed or rejected concurrently", loadID)
	}
	r.promoteLocked(e)
	out := e.load.Clone()
	r.mu.Unlock()

	slog.Info("load confirmed", "load_id", loadID)
	r.publish(ctx, messages.LoadEventConfirmed, out, models.LoadStatusUnconfirmed, nil)
	return out, nil
}

func (r *Registry) RejectLoad(ctx context.Context, loadID string) error {
	r.begin(&r.updating, &r.listErr)
	err := r.rejectLoad(ctx, loadID)
	r.end(&r.updating, &r.listErr, err)
	return err
}

func (r *Registry) rejectLoad(ctx context.Context, loadID string) error {
	if !r.has(loadID, isUnconfirmed) {
		return errors.Wrapf(ErrNotFound, "load %s is not awaiting confirmation", loadID)
	}
	if err := r.gw.RejectLoad(ctx, loadID); err != nil {
		return remote("reject load", err)
	}

	r.mu.Lock()
	e, ok := r.index[loadID]
	if !ok || !isUnconfirmed(e.load) {
		r.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "load %s was confirmed or rejected concurrently", loadID)
	}
	delete(r.index, loadID)
	out := e.load.Clone()
	r.mu.Unlock()

	out.Status = models.LoadStatusRejected
	slog.Info("load rejected", "load_id", loadID)
	r.publish(ctx, messages.LoadEventRejected, out, models.LoadStatusUnconfirmed, nil)
	return nil
}

// ConfirmAllUnconfirmed подтверждает грузы, которые были в unconfirmed в момент вызова.
// Грузы, появившиеся позже, в пачку не попадают; исчезнувшие за время запроса пропускаются.
func (r *Registry) ConfirmAllUnconfirmed(ctx context.Context, pin string) ([]*models.Load, error) {
	r.begin(&r.updating, &r.listErr)
	out, err := r.confirmAll(ctx, pin)
	r.end(&r.updating, &r.listErr, err)
	return out, err
}

func (r *Registry) confirmAll(ctx context.Context, pin string) ([]*models.Load, error) {
	r.mu.Lock()
	snapshot := r.viewLocked(isUnconfirmed)
	r.mu.Unlock()
	if len(snapshot) == 0 {
		return nil, ErrNothingToConfirm
	}
	ids := make([]string, 0, len(snapshot))
	for _, e := range snapshot {
		ids = append(ids, e.load.ID)
	}

	if err := validatePin(pin); err != nil {
		return nil, err
	}
	if err := r.checkPin(ctx, pin, "bulk confirmation", "Invalid PIN for bulk confirmation"); err != nil {
		return nil, err
	}
	if err := r.gw.ConfirmLoads(ctx, ids); err != nil {
		return nil, remote("bulk confirmation", err)
	}

	r.mu.Lock()
	out := make([]*models.Load, 0, len(ids))
	for _, id := range ids {
		e, ok := r.index[id]
		if !ok || !isUnconfirmed(e.load) {
			continue
		}
		r.promoteLocked(e)
		out = append(out, e.load.Clone())
	}
	r.mu.Unlock()

	slog.Info("loads bulk confirmed", "requested", len(ids), "confirmed", len(out))
	for _, l := range out {
		r.publish(ctx, messages.LoadEventConfirmed, l, models.LoadStatusUnconfirmed, map[string]string{"batch": "true"})
	}
	return out, nil
}

func (r *Registry) FetchLoadDetail(ctx context.Context, loadID string) (*models.Load, error) {
	r.begin(&r.detailLoading, &r.detailErr)

	l, err := r.src.FetchDetail(ctx, loadID)
	if err == nil && l == nil {
		err = errors.Wrapf(ErrNotFound, "load %s", loadID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.detailLoading--
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			err = remote("fetch load detail", err)
		}
		// Как и в FetchLoads, ошибка не трогает уже показанные данные.
		r.detailErr = err.Error()
		return nil, err
	}
	r.detail = l.Clone()
	return r.detailLocked(), nil
}

func (r *Registry) ConfirmPickup(ctx context.Context, loadID string) (*models.Load, error) {
	r.begin(&r.updating, &r.detailErr)
	out, err := r.confirmPickup(ctx, loadID)
	r.end(&r.updating, &r.detailErr, err)
	return out, err
}

func (r *Registry) confirmPickup(ctx context.Context, loadID string) (*models.Load, error) {
	r.mu.Lock()
	err := r.checkPickupLocked(loadID)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := r.gw.ConfirmPickup(ctx, loadID); err != nil {
		return nil, remote("confirm pickup", err)
	}

	r.mu.Lock()
	if err := r.checkPickupLocked(loadID); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	e := r.index[loadID]
	e.load.Status = models.LoadStatusInProgress
	e.load.CurrentStage = models.LoadStageInTransit
	out := e.load.Clone()
	r.mu.Unlock()

	slog.Info("pickup confirmed", "load_id", loadID)
	r.invalidate(ctx, loadID)
	r.publish(ctx, messages.LoadEventPickedUp, out, models.LoadStatusConfirmed, nil)
	return out, nil
}

func (r *Registry) checkPickupLocked(loadID string) error {
	e, ok := r.index[loadID]
	if !ok || !isConfirmed(e.load) {
		return errors.Wrapf(ErrNotFound, "load %s is not confirmed", loadID)
	}
	if e.load.Status != models.LoadStatusConfirmed || e.load.CurrentStage != models.LoadStagePickup {
		return errors.Wrapf(ErrInvalidTransition,
			"pickup of load %s requires status %q at stage %q, got %q at %q",
			loadID, models.LoadStatusConfirmed, models.LoadStagePickup, e.load.Status, e.load.CurrentStage)
	}
	return nil
}

func (r *Registry) CompleteDelivery(ctx context.Context, loadID, notes string, photoRefs []string) (*models.Load, error) {
	r.begin(&r.updating, &r.detailErr)
	out, err := r.completeDelivery(ctx, loadID, notes, photoRefs)
	r.end(&r.updating, &r.detailErr, err)
	return out, err
}

func (r *Registry) completeDelivery(ctx context.Context, loadID, notes string, photoRefs []string) (*models.Load, error) {
	photos := make([]string, 0, len(photoRefs))
	for _, p := range photoRefs {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	if len(photos) == 0 {
		return nil, ErrMissingProof
	}

	r.mu.Lock()
	err := r.checkDeliveryLocked(loadID)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	proof := models.DeliveryProof{LoadID: loadID, Notes: notes, PhotoRefs: photos}
	if err := r.gw.CompleteDelivery(ctx, proof); err != nil {
		return nil, remote("complete delivery", err)
	}

	r.mu.Lock()
	if err := r.checkDeliveryLocked(loadID); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	e := r.index[loadID]
	e.load.Status = models.LoadStatusDelivered
	e.load.CurrentStage = models.LoadStageDelivered
	if r.detail != nil && r.detail.ID == loadID {
		r.detail = nil
	}
	out := e.load.Clone()
	r.mu.Unlock()

	slog.Info("delivery completed", "load_id", loadID, "photos", len(photos))
	r.invalidate(ctx, loadID)
	r.publish(ctx, messages.LoadEventDelivered, out, models.LoadStatusInProgress, map[string]string{"notes": notes})
	return out, nil
}

func (r *Registry) checkDeliveryLocked(loadID string) error {
	e, ok := r.index[loadID]
	if !ok || !isConfirmed(e.load) {
		return errors.Wrapf(ErrNotFound, "load %s is not confirmed", loadID)
	}
	if e.load.Status != models.LoadStatusInProgress {
		return errors.Wrapf(ErrInvalidTransition,
			"delivery of load %s requires status %q, got %q", loadID, models.LoadStatusInProgress, e.load.Status)
	}
	return nil
}

// SubmitReassignmentRequest отправляет запрос на переназначение.
// Груз остаётся в confirmed до решения диспетчера, закрывается только карточка.
func (r *Registry) SubmitReassignmentRequest(ctx context.Context, loadID, reason, details string) error {
	r.begin(&r.reassigning, &r.reassignErr)
	err := r.submitReassignment(ctx, loadID, reason, details)
	r.end(&r.reassigning, &r.reassignErr, err)
	return err
}

func (r *Registry) submitReassignment(ctx context.Context, loadID, reason, details string) error {
	reason = strings.TrimSpace(reason)
	details = strings.TrimSpace(details)
	if reason == "" {
		return validationf("reassignment reason is required")
	}
	if strings.EqualFold(reason, models.ReassignReasonOther) && details == "" {
		return validationf("details are required for reason %q", models.ReassignReasonOther)
	}

	r.mu.Lock()
	_, known := r.index[loadID]
	r.mu.Unlock()
	if !known {
		return errors.Wrapf(ErrNotFound, "load %s", loadID)
	}

	req := models.ReassignmentRequest{LoadID: loadID, Reason: reason, Details: details}
	if err := r.gw.SubmitReassignment(ctx, req); err != nil {
		return remote("submit reassignment", err)
	}

	r.mu.Lock()
	if r.detail != nil && r.detail.ID == loadID {
		r.detail = nil
	}
	var out *models.Load
	if e, ok := r.index[loadID]; ok {
		out = e.load.Clone()
	}
	r.mu.Unlock()

	slog.Info("reassignment requested", "load_id", loadID, "reason", reason)
	if out != nil {
		r.publish(ctx, messages.LoadEventReassignmentRequested, out, out.Status,
			map[string]string{"reason": reason, "details": details})
	}
	return nil
}

func (r *Registry) ClearLoadDetails() {
	r.mu.Lock()
	r.detail = nil
	r.detailErr = ""
	r.mu.Unlock()
}

func (r *Registry) ClearListError() {
	r.mu.Lock()
	r.listErr = ""
	r.mu.Unlock()
}

func (r *Registry) ClearDetailError() {
	r.mu.Lock()
	r.detailErr = ""
	r.mu.Unlock()
}

func (r *Registry) ClearReassignmentError() {
	r.mu.Lock()
	r.reassignErr = ""
	r.mu.Unlock()
}

func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Confirmed:              cloneEntries(r.viewLocked(isConfirmed)),
		Unconfirmed:            cloneEntries(r.viewLocked(isUnconfirmed)),
		Detail:                 r.detailLocked(),
		ListLoading:            r.listLoading > 0,
		DetailLoading:          r.detailLoading > 0,
		Updating:               r.updating > 0,
		RequestingReassignment: r.reassigning > 0,
		ListError:              r.listErr,
		DetailError:            r.detailErr,
		ReassignmentError:      r.reassignErr,
	}
}

func (r *Registry) Confirmed() []*models.Load {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneEntries(r.viewLocked(isConfirmed))
}

func (r *Registry) Unconfirmed() []*models.Load {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneEntries(r.viewLocked(isUnconfirmed))
}

func (r *Registry) Detail() *models.Load {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detailLocked()
}

func (r *Registry) begin(flag *int, errField *string) {
	r.mu.Lock()
	*flag++
	*errField = ""
	r.mu.Unlock()
}

func (r *Registry) end(flag *int, errField *string, err error) {
	r.mu.Lock()
	*flag--
	if err != nil {
		*errField = err.Error()
	}
	r.mu.Unlock()
	if err != nil {
		slog.Warn("load operation failed", "error", err.Error())
	}
}

func (r *Registry) has(loadID string, pred func(*models.Load) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[loadID]
	return ok && pred(e.load)
}

// promoteLocked переводит груз в confirmed. Неназначенный этап становится Pickup,
// иначе подтверждённый груз нельзя было бы забрать.
func (r *Registry) promoteLocked(e *entry) {
	e.load.Status = models.LoadStatusConfirmed
	if e.load.CurrentStage == "" || e.load.CurrentStage == models.LoadStagePending {
		e.load.CurrentStage = models.LoadStagePickup
	}
	r.seq++
	e.seq = r.seq
}

func (r *Registry) viewLocked(pred func(*models.Load) bool) []*entry {
	out := make([]*entry, 0, len(r.index))
	for _, e := range r.index {
		if pred(e.load) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// detailLocked отдаёт карточку со статусом и этапом из индекса.
func (r *Registry) detailLocked() *models.Load {
	if r.detail == nil {
		return nil
	}
	out := r.detail.Clone()
	if e, ok := r.index[out.ID]; ok {
		out.Status = e.load.Status
		out.CurrentStage = e.load.CurrentStage
	}
	return out
}

func (r *Registry) checkPin(ctx context.Context, pin, op, invalidMsg string) error {
	ok, err := r.pins.CheckPin(ctx, pin)
	if err != nil {
		return remote(op, err)
	}
	if !ok {
		return &pinError{msg: invalidMsg}
	}
	return nil
}

func (r *Registry) invalidate(ctx context.Context, loadID string) {
	inv, ok := r.src.(DetailInvalidator)
	if !ok {
		return
	}
	if err := inv.InvalidateDetail(ctx, loadID); err != nil {
		slog.Warn("invalidate load detail", "load_id", loadID, "error", err.Error())
	}
}

func (r *Registry) publish(ctx context.Context, kind string, l *models.Load, from string, meta map[string]string) {
	if r.pub == nil {
		return
	}
	msg := messages.LoadEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		LoadID:       l.ID,
		FromStatus:   from,
		ToStatus:     l.Status,
		CurrentStage: l.CurrentStage,
		At:           r.now().UTC(),
		Meta:         meta,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal load event", "load_id", l.ID, "error", err.Error())
		return
	}
	// Переход уже применён: ошибка публикации только логируется.
	if err := r.pub.Publish(ctx, r.topic, []byte(l.ID), b); err != nil {
		slog.Warn("publish load event", "load_id", l.ID, "kind", kind, "error", err.Error())
	}
}

func validatePin(pin string) error {
	if len(pin) != PinLength {
		return validationf("PIN must be exactly %d digits", PinLength)
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return validationf("PIN must be exactly %d digits", PinLength)
		}
	}
	return nil
}

func isUnconfirmed(l *models.Load) bool {
	return l.Status == models.LoadStatusUnconfirmed
}

func isConfirmed(l *models.Load) bool {
	return l.Status != models.LoadStatusUnconfirmed && l.Status != models.LoadStatusRejected
}

func cloneEntries(es []*entry) []*models.Load {
	out := make([]*models.Load, 0, len(es))
	for _, e := range es {
		out = append(out, e.load.Clone())
	}
	return out
}
