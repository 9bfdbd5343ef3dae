package trust

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/boogy/shc-warden/pkg/cache"
	"github.com/boogy/shc-warden/pkg/types"
	"github.com/boogy/shc-warden/pkg/utils"
)

// Store indexes issuer records by issuer id and remembers the signature
// verdict reached for each issuer. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	issuers map[string]*types.IssuerInfo

	verdicts cache.Cache
}

// NewStore creates an empty store backed by the given verdict cache. A nil
// cache gets an in-memory one.
func NewStore(verdicts cache.Cache) *Store {
	if verdicts == nil {
		verdicts = cache.NewMemoryCache()
	}
	return &Store{
		issuers:  make(map[string]*types.IssuerInfo),
		verdicts: verdicts,
	}
}

// LoadDirectory adds every entry of a trust directory snapshot to the store,
// marked as trusted. Entries already present under the same id are replaced.
func (s *Store) LoadDirectory(snapshot *types.DirectorySnapshot) int {
	if snapshot == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, info := range snapshot.IssuerInfo {
		if info.Issuer.Iss == "" {
			slog.Warn("Skipping directory entry without iss",
				slog.String("directory", snapshot.Directory),
				slog.String("name", info.Issuer.Name))
			continue
		}
		info.Issuer.IsTrusted = true
		s.index(info)
		loaded++
	}

	slog.Info("Loaded trust directory",
		slog.String("directory", snapshot.Directory),
		slog.String("time", snapshot.Time),
		slog.Int("entries", loaded))
	return loaded
}

// AddIssuer adds a single issuer record. The record's IsTrusted flag is kept
// as given, so issuers added this way are untrusted unless the caller says
// otherwise.
func (s *Store) AddIssuer(info types.IssuerInfo) {
	if info.Issuer.Iss == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index(info)
}

// index stores one shared copy of info under its iss and canonical_iss.
// Callers hold the write lock.
func (s *Store) index(info types.IssuerInfo) {
	entry := info
	entry.Keys = slices.Clone(info.Keys)

	s.issuers[entry.Issuer.Iss] = &entry
	if entry.Issuer.CanonicalIss != "" {
		s.issuers[entry.Issuer.CanonicalIss] = &entry
	}
}

// Issuer returns a copy of the record indexed under id.
func (s *Store) Issuer(id string) (types.IssuerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.issuers[id]
	if !ok {
		return types.IssuerInfo{}, false
	}

	info := *entry
	info.Keys = slices.Clone(entry.Keys)
	return info, true
}

// IsTrusted reports whether id belongs to a trust directory entry.
func (s *Store) IsTrusted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.issuers[id]
	return ok && entry.Issuer.IsTrusted
}

// IssuerName returns a display name for a known issuer: its directory name,
// otherwise the host of its URL, otherwise the id itself. Unknown issuers
// yield "".
func (s *Store) IssuerName(id string) string {
	s.mu.RLock()
	entry, ok := s.issuers[id]
	s.mu.RUnlock()

	if !ok {
		return ""
	}
	if entry.Issuer.Name != "" {
		return entry.Issuer.Name
	}
	if host := utils.HostOf(id); host != "" {
		return host
	}
	return id
}

// Len returns the number of distinct ids in the index.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issuers)
}

// CachedResult returns the verdict recorded for id, if any.
func (s *Store) CachedResult(id string) (valid bool, found bool) {
	return s.verdicts.Get(id)
}

// RecordResult remembers the verdict for id. The first verdict recorded for an
// issuer is kept for the lifetime of the store.
func (s *Store) RecordResult(id string, valid bool) {
	s.verdicts.Set(id, valid)
}
