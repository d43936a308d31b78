// Package state persists the per-URL resumable cursor for the backfill.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// URLState is the durable record for one source URL. SeenIDs is bounded:
// dedup is only guaranteed within the retained window, not forever.
// Fields are declared in key order so emitted JSON keys stay sorted.
type URLState struct {
	LastHash      string   `json:"last_hash,omitempty"`
	LastOriginal  string   `json:"last_original,omitempty"`
	LastProcessed string   `json:"last_processed,omitempty"`
	SeenIDs       []string `json:"seen_ids"`
}

// Store owns the state file for the duration of one run. Exactly one
// process may use a given state file at a time; concurrent invocations
// against the same storage root are unsupported.
type Store struct {
	path      string
	retention int
	logger    *zap.Logger
	urls      map[string]*URLState
}

// Load reads the state file at path. A missing, unreadable, or malformed
// file resets to empty state with a warning so a backfill can proceed
// without resume context rather than failing.
func Load(path string, retention int, logger *zap.Logger) *Store {
	s := &Store{
		path:      path,
		retention: retention,
		logger:    logger,
		urls:      make(map[string]*URLState),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Unreadable state file; starting from empty state",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var urls map[string]*URLState
	if err := json.Unmarshal(data, &urls); err != nil {
		logger.Warn("Malformed state file; starting from empty state",
			zap.String("path", path), zap.Error(err))
		return s
	}
	for u, st := range urls {
		if st == nil {
			st = &URLState{}
		}
		s.urls[u] = st
	}
	return s
}

func (s *Store) url(u string) *URLState {
	st, ok := s.urls[u]
	if !ok {
		st = &URLState{}
		s.urls[u] = st
	}
	return st
}

// URL returns a copy of the state for u.
func (s *Store) URL(u string) URLState {
	if st, ok := s.urls[u]; ok {
		return *st
	}
	return URLState{}
}

// Seen reports whether id has already been emitted for u within the
// retained window.
func (s *Store) Seen(u, id string) bool {
	st, ok := s.urls[u]
	if !ok {
		return false
	}
	for _, seen := range st.SeenIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// MarkSeen records id as emitted for u.
func (s *Store) MarkSeen(u, id string) {
	if !s.Seen(u, id) {
		st := s.url(u)
		st.SeenIDs = append(st.SeenIDs, id)
	}
}

// Advance moves the cursor for u to (timestamp, hash, original). The
// original URL of the cursor capture is kept so later change reports can
// name the exact capture the cursor points at, which under prefix match
// need not be u itself. The cursor never regresses: an older timestamp
// is ignored.
func (s *Store) Advance(u, timestamp, hash, original string) {
	st := s.url(u)
	if st.LastProcessed != "" && timestamp < st.LastProcessed {
		return
	}
	st.LastProcessed = timestamp
	st.LastHash = hash
	st.LastOriginal = original
}

// Size returns the total number of retained ids across all URLs.
func (s *Store) Size() int {
	n := 0
	for _, st := range s.urls {
		n += len(st.SeenIDs)
	}
	return n
}

// Save trims each URL's seen ids to the retention cap (oldest evicted
// first) and writes the full state file once.
func (s *Store) Save() error {
	for _, st := range s.urls {
		if len(st.SeenIDs) > s.retention {
			st.SeenIDs = st.SeenIDs[len(st.SeenIDs)-s.retention:]
		}
		if st.SeenIDs == nil {
			st.SeenIDs = []string{}
		}
	}
	payload, err := json.MarshalIndent(s.urls, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(s.path, append(payload, '\n'), 0o600); err != nil {
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	return nil
}
