package shelf

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"shelf-go/internal/model"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername reports whether username can name a namespace.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(normalizeUsername(username)) {
		return fmt.Errorf("%w: username %q must be 1-64 lower-case letters, digits, '.', '_' or '-'", ErrInvalidPath, username)
	}
	return nil
}

// CreateUser creates a user with its account and namespace. The namespace
// starts with its root folder and trash root.
func (s *Service) CreateUser(ctx context.Context, username string, quota sql.NullInt64) (u *model.User, err error) {
	defer s.observe("create_user", time.Now(), &err)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if quota.Valid && quota.Int64 < 0 {
		return nil, fmt.Errorf("quota must not be negative")
	}
	username = normalizeUsername(username)

	existing, err := s.db.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user %q exists", ErrConflict, username)
	}

	now := s.clock.Now()
	u = &model.User{ID: s.ids.New(), Username: username, CreatedAt: now}
	ns := &model.Namespace{ID: s.ids.New(), Path: username, OwnerID: u.ID, CreatedAt: now}
	folder := FileAttrs{MediaType: model.MediaTypeFolder, ModifiedAt: now}
	params := CreateUserParams{
		User:      u,
		Account:   &model.Account{ID: s.ids.New(), UserID: u.ID, StorageQuota: quota, CreatedAt: now},
		Namespace: ns,
		Root:      s.newFile(ns, RootPath, folder),
		Trash:     s.newFile(ns, TrashName, folder),
	}
	if err := s.db.CreateUser(ctx, params); err != nil {
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}

	s.record(ctx, "user_created", userEntity(u))
	s.logger.Info("created user", "user", username)
	return u, nil
}

// FindUser looks a user up by case-insensitive username.
func (s *Service) FindUser(ctx context.Context, username string) (*model.User, error) {
	u, err := s.db.FindUserByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return u, nil
}

// DeleteUser removes a user and everything it owns: its grants, its
// namespace with every file, and its account. Stored content is queued for
// the purge worker. Audit entries survive without a user reference.
func (s *Service) DeleteUser(ctx context.Context, username string) (err error) {
	defer s.observe("delete_user", time.Now(), &err)

	u, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}
	ns, err := s.namespace(ctx, u.Username)
	if err != nil {
		return err
	}

	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	pending, err := s.db.DeleteUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("deleting user %q: %w", u.Username, err)
	}
	s.enqueuePending(ctx, pending)

	s.record(ctx, "user_deleted", userEntity(u))
	s.logger.Info("deleted user", "user", u.Username, "queued", len(pending))
	return nil
}
