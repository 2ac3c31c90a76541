package shelf

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shelf-go/internal/model"
)

// AccountUsage is a user's storage consumption against its quota.
type AccountUsage struct {
	Username  string
	UsedBytes int64
	Quota     sql.NullInt64 // invalid means unlimited
}

// Available returns the bytes left under the quota, or -1 when unlimited.
func (u *AccountUsage) Available() int64 {
	if !u.Quota.Valid {
		return -1
	}
	return max(u.Quota.Int64-u.UsedBytes, 0)
}

// Reserve admits bytes against the account's quota. The check and the
// usage update are one statement, so concurrent reservations can never
// admit past the ceiling together. Callers release the reservation if the
// write it guards fails.
func (s *Service) Reserve(ctx context.Context, accountID string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	ok, err := s.db.ReserveQuota(ctx, accountID, bytes)
	if err != nil {
		return fmt.Errorf("reserving quota: %w", err)
	}
	if !ok {
		s.metrics.RecordQuotaRejection()
		return fmt.Errorf("%w: no room for %d more bytes", ErrQuotaExceeded, bytes)
	}
	return nil
}

// Release frees previously reserved bytes.
func (s *Service) Release(ctx context.Context, accountID string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	if err := s.db.ReleaseQuota(ctx, accountID, bytes); err != nil {
		return fmt.Errorf("releasing quota: %w", err)
	}
	return nil
}

// releaseQuietly undoes a reservation after a failed write.
func (s *Service) releaseQuietly(ctx context.Context, accountID string, bytes int64) {
	if err := s.Release(context.WithoutCancel(ctx), accountID, bytes); err != nil {
		s.logger.Error("releasing reservation failed", "account", accountID, "bytes", bytes, "error", err)
	}
}

// Usage reports a user's storage consumption.
func (s *Service) Usage(ctx context.Context, username string) (*AccountUsage, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AccountUsage{Username: user.Username, UsedBytes: acc.UsedBytes, Quota: acc.StorageQuota}, nil
}

// SetQuota changes a user's quota ceiling. An invalid quota removes it.
// Lowering the ceiling below current usage is allowed; it only blocks
// further writes.
func (s *Service) SetQuota(ctx context.Context, username string, quota sql.NullInt64) (err error) {
	defer s.observe("set_quota", time.Now(), &err)

	if quota.Valid && quota.Int64 < 0 {
		return fmt.Errorf("quota must not be negative")
	}
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}
	acc, err := s.account(ctx, user)
	if err != nil {
		return err
	}
	if err := s.db.SetAccountQuota(ctx, acc.ID, quota); err != nil {
		return fmt.Errorf("setting quota: %w", err)
	}
	s.logger.Info("quota updated", "user", user.Username, "quota", quota.Int64, "unlimited", !quota.Valid)
	return nil
}

func (s *Service) account(ctx context.Context, user *model.User) (*model.Account, error) {
	acc, err := s.db.FindAccountByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: account for %q", ErrNotFound, user.Username)
	}
	return acc, nil
}
