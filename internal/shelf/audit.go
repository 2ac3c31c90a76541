package shelf

import (
	"context"
	"database/sql"
	"fmt"

	"shelf-go/internal/model"
)

const defaultAuditLimit = 50

// record appends an audit entry for the acting user in ctx. Failures are
// logged and never fail the operation being audited.
func (s *Service) record(ctx context.Context, action string, entities ...model.AuditEntity) {
	trail := &model.AuditTrail{
		ID:        s.ids.New(),
		Action:    action,
		Entities:  entities,
		CreatedAt: s.clock.Now(),
	}
	if actor := ActorFrom(ctx); actor != nil {
		trail.UserID = sql.NullString{String: actor.ID, Valid: true}
		trail.Username = actor.Username
	}
	if err := s.db.CreateAuditTrail(context.WithoutCancel(ctx), trail); err != nil {
		s.logger.Warn("recording audit trail failed", "action", action, "error", err)
	}
}

func userEntity(u *model.User) model.AuditEntity {
	return model.AuditEntity{Type: "user", ID: u.ID, Name: u.Username}
}

// AuditLog returns the user's most recent audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, username string, limit int) ([]*model.AuditTrail, error) {
	u, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	trails, err := s.db.ListAuditTrails(ctx, u.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit trails: %w", err)
	}
	return trails, nil
}
