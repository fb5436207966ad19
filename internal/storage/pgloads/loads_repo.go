package pgloads

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

const loadColumns = `
  id, status, current_stage,
  pickup_location, dropoff_location,
  pickup_at, dropoff_at, detail
`

// UpsertLoads заводит или обновляет грузы водителя. Используется для первичного наполнения
// и когда диспетчерская присылает новые назначения.
func (s *Storage) UpsertLoads(ctx context.Context, items []*models.Load) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range items {
		var detail *string
		if l.Detail != nil {
			b, err := json.Marshal(l.Detail)
			if err != nil {
				return errors.Wrapf(err, "marshal detail %s", l.ID)
			}
			v := string(b)
			detail = &v
		}
		_, err := tx.Exec(ctx, `
INSERT INTO loads (
  id, status, current_stage, pickup_location, dropoff_location, pickup_at, dropoff_at, detail, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now(), now())
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  current_stage = EXCLUDED.current_stage,
  pickup_location = EXCLUDED.pickup_location,
  dropoff_location = EXCLUDED.dropoff_location,
  pickup_at = EXCLUDED.pickup_at,
  dropoff_at = EXCLUDED.dropoff_at,
  detail = COALESCE(EXCLUDED.detail, loads.detail),
  updated_at = now()
`, l.ID, l.Status, l.CurrentStage, l.PickupLocation, l.DropoffLocation, l.PickupAt.UTC(), l.DropoffAt.UTC(), detail)
		if err != nil {
			return errors.Wrap(err, "upsert load")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) CountLoads(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM loads`).Scan(&n)
	return n, errors.Wrap(err, "count loads")
}

func (s *Storage) FetchAll(ctx context.Context) ([]*models.Load, error) {
	rows, err := s.db.Query(ctx, `SELECT `+loadColumns+` FROM loads ORDER BY pickup_at ASC, id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select loads")
	}
	defer rows.Close()

	var out []*models.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		// списки отдаются без карточек
		l.Detail = nil
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) FetchDetail(ctx context.Context, loadID string) (*models.Load, error) {
	row := s.db.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1`, loadID)
	l, err := scanLoad(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("Load details not found")
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ConfirmLoads подтверждает все грузы одной транзакцией. Если хоть один уже не Unconfirmed,
// откатывается всё.
func (s *Storage) ConfirmLoads(ctx context.Context, loadIDs []string) error {
	if len(loadIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE loads
SET
  status = $2,
  current_stage = CASE WHEN current_stage IN ('', $4) THEN $5 ELSE current_stage END,
  updated_at = now()
WHERE id = ANY($1) AND status = $3
`, loadIDs, models.LoadStatusConfirmed, models.LoadStatusUnconfirmed, models.LoadStagePending, models.LoadStagePickup)
	if err != nil {
		return errors.Wrap(err, "confirm loads")
	}
	if tag.RowsAffected() != int64(len(loadIDs)) {
		return errors.Errorf("only %d of %d loads can be confirmed", tag.RowsAffected(), len(loadIDs))
	}

	now := time.Now().UTC()
	for _, id := range loadIDs {
		if err := insertEvent(ctx, tx, id, "confirmed", models.LoadStatusUnconfirmed, models.LoadStatusConfirmed, nil, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) RejectLoad(ctx context.Context, loadID string) error {
	return s.transition(ctx, loadID, "rejected", models.LoadStatusUnconfirmed, models.LoadStatusRejected, `
UPDATE loads SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
`, loadID, models.LoadStatusRejected, models.LoadStatusUnconfirmed)
}

func (s *Storage) ConfirmPickup(ctx context.Context, loadID string) error {
	at := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transition(ctx, loadID, "picked_up", models.LoadStatusConfirmed, models.LoadStatusInProgress, `
UPDATE loads
SET
  status = $2,
  current_stage = $3,
  detail = jsonb_set(
    jsonb_set(COALESCE(detail, '{}'::jsonb), '{pickupTimeActual}', to_jsonb($6::text)),
    '{inTransitStartTime}', to_jsonb($6::text)),
  updated_at = now()
WHERE id = $1 AND status = $4 AND current_stage = $5
`, loadID, models.LoadStatusInProgress, models.LoadStageInTransit, models.LoadStatusConfirmed, models.LoadStagePickup, at)
}

func (s *Storage) CompleteDelivery(ctx context.Context, proof models.DeliveryProof) error {
	if len(proof.PhotoRefs) == 0 {
		return errors.New("Failed to submit delivery proof")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE loads
SET status = $2, current_stage = $3, detail = detail - 'deliveryTimeEstimate', updated_at = now()
WHERE id = $1 AND status = $4
`, proof.LoadID, models.LoadStatusDelivered, models.LoadStageDelivered, models.LoadStatusInProgress)
	if err != nil {
		return errors.Wrap(err, "complete delivery")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("delivery cannot be completed for load %s", proof.LoadID)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
INSERT INTO delivery_proofs (load_id, notes, photo_refs, created_at)
VALUES ($1,$2,$3,$4)
`, proof.LoadID, proof.Notes, proof.PhotoRefs, now)
	if err != nil {
		return errors.Wrap(err, "insert delivery proof")
	}

	payload := map[string]any{"notes": proof.Notes, "photos": len(proof.PhotoRefs)}
	if err := insertEvent(ctx, tx, proof.LoadID, "delivered", models.LoadStatusInProgress, models.LoadStatusDelivered, payload, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) SubmitReassignment(ctx context.Context, req models.ReassignmentRequest) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM loads WHERE id = $1 FOR UPDATE`, req.LoadID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Errorf("load %s not found", req.LoadID)
	}
	if err != nil {
		return errors.Wrap(err, "select load")
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
INSERT INTO reassignment_requests (load_id, reason, details, created_at)
VALUES ($1,$2,$3,$4)
`, req.LoadID, req.Reason, req.Details, now)
	if err != nil {
		return errors.Wrap(err, "insert reassignment request")
	}

	payload := map[string]any{"reason": req.Reason, "details": req.Details}
	if err := insertEvent(ctx, tx, req.LoadID, "reassignment_requested", status, status, payload, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// transition выполняет условный UPDATE и пишет событие в журнал. Ноль затронутых строк:
// груз не в том статусе.
func (s *Storage) transition(ctx context.Context, loadID, kind, from, to, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "update load (%s)", kind)
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("load %s cannot move from %s to %s", loadID, from, to)
	}

	if err := insertEvent(ctx, tx, loadID, kind, from, to, nil, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func scanLoad(row pgx.Row) (*models.Load, error) {
	var l models.Load
	var detail []byte
	if err := row.Scan(
		&l.ID, &l.Status, &l.CurrentStage,
		&l.PickupLocation, &l.DropoffLocation,
		&l.PickupAt, &l.DropoffAt, &detail,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan load")
	}
	if len(detail) > 0 {
		var d models.LoadDetail
		if err := json.Unmarshal(detail, &d); err != nil {
			return nil, errors.Wrapf(err, "decode detail %s", l.ID)
		}
		l.Detail = &d
	}
	return &l, nil
}
