package database

import (
	"context"
	"database/sql"
	"fmt"

	"shelf-go/internal/model"
)

// CreateAuditTrail stores an entry, registering its action name on first use.
func (s *SQLiteDatabase) CreateAuditTrail(ctx context.Context, trail *model.AuditTrail) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO audit_trail_actions (name) VALUES (?) ON CONFLICT (name) DO NOTHING", trail.Action); err != nil {
			return fmt.Errorf("registering audit action: %w", err)
		}
		var actionID int64
		if err := tx.QueryRowContext(ctx,
			"SELECT id FROM audit_trail_actions WHERE name = ?", trail.Action).Scan(&actionID); err != nil {
			return fmt.Errorf("finding audit action: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO audit_trails (id, action_id, user_id, created_at) VALUES (?, ?, ?, ?)",
			trail.ID, actionID, trail.UserID, trail.CreatedAt); err != nil {
			return fmt.Errorf("inserting audit trail: %w", err)
		}
		for i, e := range trail.Entities {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO audit_trail_entities (audit_trail_id, position, entity_type, entity_id, name, path)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				trail.ID, i, e.Type, e.ID, e.Name, e.Path); err != nil {
				return fmt.Errorf("inserting audit entity: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) ListAuditTrails(ctx context.Context, userID string, limit int) ([]*model.AuditTrail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, a.name, t.user_id, COALESCE(u.username, ''), t.created_at
		 FROM audit_trails t
		 JOIN audit_trail_actions a ON a.id = t.action_id
		 LEFT JOIN users u ON u.id = t.user_id
		 WHERE t.user_id = ?
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit trails: %w", err)
	}
	var trails []*model.AuditTrail
	byID := make(map[string]*model.AuditTrail)
	for rows.Next() {
		var t model.AuditTrail
		if err := rows.Scan(&t.ID, &t.Action, &t.UserID, &t.Username, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning audit trail: %w", err)
		}
		trails = append(trails, &t)
		byID[t.ID] = &t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing audit trails: %w", err)
	}
	if len(trails) == 0 {
		return nil, nil
	}

	ids := make([]string, len(trails))
	for i, t := range trails {
		ids[i] = t.ID
	}
	erows, err := s.db.QueryContext(ctx,
		"SELECT audit_trail_id, entity_type, entity_id, name, path FROM audit_trail_entities WHERE audit_trail_id IN ("+
			placeholders(len(ids))+") ORDER BY audit_trail_id, position", stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entities: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var trailID string
		var e model.AuditEntity
		if err := erows.Scan(&trailID, &e.Type, &e.ID, &e.Name, &e.Path); err != nil {
			return nil, fmt.Errorf("scanning audit entity: %w", err)
		}
		if t := byID[trailID]; t != nil {
			t.Entities = append(t.Entities, e)
		}
	}
	return trails, erows.Err()
}
