package shelf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shelf-go/internal/model"
)

const defaultRetryLimit = 500

// ProcessPendingDeletions physically removes the content queued under the
// given record IDs. Content still referenced by a live file in its
// namespace is kept. A record is removed once handled; on storage failure it
// stays for a later retry. Unknown IDs are ignored, so the job is safe to
// deliver more than once. It returns the number of records handled.
func (s *Service) ProcessPendingDeletions(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	items, err := s.db.FindPendingDeletions(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("finding pending deletions: %w", err)
	}
	return s.processPending(ctx, items)
}

// RetryPendingDeletions sweeps up to limit leftover records, oldest first.
func (s *Service) RetryPendingDeletions(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultRetryLimit
	}
	items, err := s.db.ListPendingDeletions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing pending deletions: %w", err)
	}
	return s.processPending(ctx, items)
}

func (s *Service) processPending(ctx context.Context, items []*model.FilePendingDeletion) (handled int, err error) {
	defer s.observe("purge_content", time.Now(), &err)

	var errs []error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		outcome, err := s.purgeContent(ctx, item)
		if err != nil {
			s.metrics.RecordPendingDeletion("failed")
			s.logger.Warn("purging content failed", "id", item.ID, "namespace", item.NamespacePath, "hash", item.ContentHash, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := s.db.DeletePendingDeletion(ctx, item.ID); err != nil {
			errs = append(errs, fmt.Errorf("removing pending deletion %s: %w", item.ID, err))
			continue
		}
		s.metrics.RecordPendingDeletion(outcome)
		handled++
	}
	return handled, errors.Join(errs...)
}

// purgeContent deletes the bytes of one record unless they are still in use.
func (s *Service) purgeContent(ctx context.Context, item *model.FilePendingDeletion) (string, error) {
	if item.ContentHash == "" {
		return "skipped", nil
	}
	ns, err := s.db.FindNamespaceByPath(ctx, item.NamespacePath)
	if err != nil {
		return "", fmt.Errorf("finding namespace: %w", err)
	}
	if ns != nil {
		// Uploads check stored content under the same lock before
		// committing a row that relies on it.
		unlock, err := s.lockNamespace(ctx, ns)
		if err != nil {
			return "", err
		}
		defer unlock()

		referenced, err := s.db.ContentReferenced(ctx, ns.ID, item.ContentHash)
		if err != nil {
			return "", fmt.Errorf("checking references: %w", err)
		}
		if referenced {
			return "retained", nil
		}
	}
	if err := s.storage.Delete(ctx, item.NamespacePath, item.ContentHash); err != nil {
		return "", fmt.Errorf("deleting content: %w", err)
	}
	s.logger.Debug("purged content", "namespace", item.NamespacePath, "hash", item.ContentHash)
	return "purged", nil
}
