package pgloads

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
)

func (s *Storage) ListLoadEvents(ctx context.Context, loadID string, limit, offset int) ([]*models.LoadEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, load_id, kind, from_status, to_status, payload, created_at
FROM load_events
WHERE load_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, loadID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.LoadEvent
	for rows.Next() {
		var e models.LoadEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.LoadID, &e.Kind, &e.FromStatus, &e.ToStatus, &payload, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		if len(payload) > 0 {
			s := string(payload)
			e.Payload = &s
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, loadID, kind, from, to string, payload map[string]any, at time.Time) error {
	var raw *string
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshal event payload")
		}
		v := string(b)
		raw = &v
	}

	_, err := tx.Exec(ctx, `
INSERT INTO load_events (load_id, kind, from_status, to_status, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, loadID, kind, from, to, raw, at)
	return errors.Wrap(err, "insert load event")
}
