package shelf

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"slices"
	"time"

	"shelf-go/internal/chash"
	"shelf-go/internal/dhash"
	"shelf-go/internal/metadata"
	"shelf-go/internal/model"
)

// NearDuplicate is a file whose fingerprint lies within the requested
// Hamming distance of a query.
type NearDuplicate struct {
	File     *model.File
	Distance int
}

// HammingDistance counts the differing bits of two 64-bit fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Index computes the content hash and perceptual fingerprint of f from r and
// stores the fingerprint. Files whose media type is not indexable get none
// and Index returns nil. A stored content hash that disagrees with the bytes
// is corrected.
func (s *Service) Index(ctx context.Context, f *model.File, r io.Reader) (fp *model.Fingerprint, err error) {
	if f.IsFolder() || !dhash.Supported(f.MediaType) {
		return nil, nil
	}

	h := chash.New()
	src := io.TeeReader(&ctxReader{ctx: ctx, r: r}, h)
	value, err := dhash.Compute(src)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting %s: %w", f.Path, err)
	}
	// Decoders may stop before EOF; the hash must cover everything.
	if _, err := io.Copy(io.Discard, src); err != nil {
		return nil, fmt.Errorf("hashing %s: %w", f.Path, err)
	}

	if sum := h.Sum(); sum != f.ContentHash {
		if err := s.rekeyContent(ctx, f, sum); err != nil {
			return nil, err
		}
	}

	fp = model.NewFingerprint(f.ID, value)
	if err := s.db.SaveFingerprint(ctx, fp); err != nil {
		return nil, fmt.Errorf("saving fingerprint: %w", err)
	}
	return fp, nil
}

// rekeyContent stores a file's bytes under their true content hash and
// queues the stale key for purge.
func (s *Service) rekeyContent(ctx context.Context, f *model.File, sum string) error {
	ns, err := s.db.FindNamespaceByID(ctx, f.NamespaceID)
	if err != nil {
		return fmt.Errorf("finding namespace: %w", err)
	}
	if ns == nil {
		return fmt.Errorf("%w: namespace of %s", ErrNotFound, f.Path)
	}

	// A pending purge of sum must not run between the write and the update.
	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	rc, err := s.storage.Read(ctx, ns.Path, f.ContentHash)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	defer rc.Close()
	if _, err := s.storage.Write(ctx, ns.Path, sum, rc); err != nil {
		return fmt.Errorf("rewriting content: %w", err)
	}
	if err := s.db.UpdateContentHash(ctx, f.ID, sum); err != nil {
		return fmt.Errorf("updating content hash: %w", err)
	}

	s.logger.Warn("repaired stale content hash", "namespace", ns.Path, "path", f.Path, "old", f.ContentHash, "new", sum)
	s.discardContent(ctx, ns, f.Path, f.ContentHash, f.MediaType)
	f.ContentHash = sum
	return nil
}

// IndexFile fingerprints a stored file by ID. Files that no longer exist or
// are not indexable are skipped, so the job can be delivered repeatedly.
func (s *Service) IndexFile(ctx context.Context, fileID string) (err error) {
	defer s.observe("index", time.Now(), &err)

	f, err := s.db.FindFileByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("finding file: %w", err)
	}
	if f == nil {
		s.logger.Debug("skipping index of missing file", "file_id", fileID)
		return nil
	}
	if f.IsFolder() || f.ContentHash == "" || !dhash.Supported(f.MediaType) {
		return nil
	}
	ns, err := s.db.FindNamespaceByID(ctx, f.NamespaceID)
	if err != nil {
		return fmt.Errorf("finding namespace: %w", err)
	}
	if ns == nil {
		return nil
	}

	rc, err := s.storage.Read(ctx, ns.Path, f.ContentHash)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	_, err = s.Index(ctx, f, rc)
	rc.Close()
	if err != nil {
		if errors.Is(err, dhash.ErrUnsupported) {
			s.logger.Warn("content is not a decodable image", "namespace", ns.Path, "path", f.Path)
			return nil
		}
		return err
	}

	if metadata.Supported(f.MediaType) {
		if err := s.indexMetadata(ctx, ns, f); err != nil {
			s.logger.Warn("reading content metadata failed", "namespace", ns.Path, "path", f.Path, "error", err)
		}
	}
	return nil
}

// indexMetadata stores the EXIF details of f's content. Content without
// any stores nothing.
func (s *Service) indexMetadata(ctx context.Context, ns *model.Namespace, f *model.File) error {
	rc, err := s.storage.Read(ctx, ns.Path, f.ContentHash)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	defer rc.Close()

	x, err := metadata.ReadExif(&ctxReader{ctx: ctx, r: rc})
	if err != nil {
		return err
	}
	if x == nil {
		return nil
	}
	return s.db.SaveMetadata(ctx, &model.ContentMetadata{FileID: f.ID, Data: *x, UpdatedAt: s.clock.Now()})
}

// Metadata returns the content metadata recorded for the file at p.
func (s *Service) Metadata(ctx context.Context, nsPath, p string) (*model.ContentMetadata, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	_, f, err := s.statLocation(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	m, err := s.db.FindMetadata(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("finding metadata: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s has no metadata", ErrNotFound, p)
	}
	return m, nil
}

// FindExactDuplicates returns the namespace's files with the given content
// hash, excluding trashed ones. Empty content has no duplicates.
func (s *Service) FindExactDuplicates(ctx context.Context, nsPath, contentHash string) ([]*model.File, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if contentHash == "" {
		return nil, nil
	}
	files, err := s.db.FindFilesByContentHash(ctx, ns.ID, contentHash, trashKey())
	if err != nil {
		return nil, fmt.Errorf("finding duplicates: %w", err)
	}
	return files, nil
}

// FindNearDuplicates returns the namespace's fingerprinted files within
// maxDistance bits of value, closest first. Candidates are files sharing at
// least one fingerprint part with value; each is then verified on the full
// 64 bits. A negative maxDistance uses the service default.
func (s *Service) FindNearDuplicates(ctx context.Context, nsPath string, value uint64, maxDistance int) ([]NearDuplicate, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	return s.nearDuplicates(ctx, ns, value, maxDistance, "")
}

// FindSimilar runs FindNearDuplicates for the fingerprint of the file at
// path, leaving the file itself out.
func (s *Service) FindSimilar(ctx context.Context, nsPath, p string, maxDistance int) ([]NearDuplicate, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	if loc.mount != nil {
		return nil, fmt.Errorf("%w: duplicate search does not cross mounts", ErrMountConflict)
	}
	f, err := s.findFile(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	fp, err := s.db.FindFingerprint(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("finding fingerprint: %w", err)
	}
	if fp == nil {
		return nil, fmt.Errorf("%w: %s has no fingerprint", ErrNotFound, p)
	}
	return s.nearDuplicates(ctx, ns, fp.Value(), maxDistance, f.ID)
}

func (s *Service) nearDuplicates(ctx context.Context, ns *model.Namespace, value uint64, maxDistance int, skipID string) ([]NearDuplicate, error) {
	if maxDistance < 0 {
		maxDistance = s.maxDistance
	}
	parts := model.NewFingerprint("", value).Parts()
	candidates, err := s.db.FindFingerprintCandidates(ctx, ns.ID, parts, trashKey())
	if err != nil {
		return nil, fmt.Errorf("finding candidates: %w", err)
	}

	var matches []NearDuplicate
	for _, c := range candidates {
		if c.File.ID == skipID {
			continue
		}
		if d := HammingDistance(value, c.Fingerprint.Value()); d <= maxDistance {
			matches = append(matches, NearDuplicate{File: c.File, Distance: d})
		}
	}
	slices.SortFunc(matches, func(a, b NearDuplicate) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.File.PathKey, b.File.PathKey))
	})
	s.metrics.ObserveNearDuplicateQuery(len(candidates), len(matches))
	return matches, nil
}

// FindDuplicateGroups groups the fingerprinted files under folder whose
// fingerprints are within maxDistance of each other, transitively. Files
// are bucketed by each fingerprint part and only pairs sharing a bucket are
// compared. Groups have at least two files, each sorted by path.
func (s *Service) FindDuplicateGroups(ctx context.Context, nsPath, folder string, maxDistance int) ([][]*model.File, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if folder, err = NormalizePath(folder); err != nil {
		return nil, err
	}
	if maxDistance < 0 {
		maxDistance = s.maxDistance
	}
	all, err := s.db.ListFingerprints(ctx, ns.ID, PathKey(folder), trashKey())
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}

	type bucket struct {
		part  int
		value int16
	}
	buckets := make(map[bucket][]int)
	for i, ff := range all {
		for part, v := range ff.Fingerprint.Parts() {
			k := bucket{part, v}
			buckets[k] = append(buckets[k], i)
		}
	}

	uf := newUnionFind(len(all))
	for _, members := range buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if uf.find(a) == uf.find(b) {
					continue
				}
				if HammingDistance(all[a].Fingerprint.Value(), all[b].Fingerprint.Value()) <= maxDistance {
					uf.union(a, b)
				}
			}
		}
	}

	byRoot := make(map[int][]*model.File)
	for i, ff := range all {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], ff.File)
	}
	var groups [][]*model.File
	for _, g := range byRoot {
		if len(g) < 2 {
			continue
		}
		slices.SortFunc(g, func(a, b *model.File) int { return cmp.Compare(a.PathKey, b.PathKey) })
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b []*model.File) int { return cmp.Compare(a[0].PathKey, b[0].PathKey) })
	return groups, nil
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	switch {
	case ra == rb:
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
