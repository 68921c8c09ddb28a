package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"
)

// record is implemented by pointers to the stored record types.
type record[T any] interface {
	*T
	GetID() uint64
	SetID(id uint64)
	GetUID() string
	IsSynced() bool
	SetSynced()
	RecordedAt() time.Time
}

// Stream is one append-only JSON array file. Every mutation holds mu for the
// whole read-modify-persist cycle and replaces the file atomically; the
// in-memory copy is only updated after the write succeeded.
type Stream[T any, P record[T]] struct {
	name    string
	path    string
	seqPath string
	log     *logger.Logger

	mu        sync.Mutex
	records   []T
	highWater uint64 // largest id ever assigned, survives pruning
	now       func() time.Time
}

// OpenStream loads <dir>/<name>.json. An unreadable file is moved aside and
// the stream starts empty: losing the queue beats halting acquisition.
func OpenStream[T any, P record[T]](dir, name string, log *logger.Logger) (*Stream[T, P], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
	}
	s := &Stream[T, P]{
		name:    name,
		path:    filepath.Join(dir, name+".json"),
		seqPath: filepath.Join(dir, name+".seq"),
		log:     log,
		now:     time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stream[T, P]) load() error {
	raw, err := readFileIfExists(s.path)
	if err != nil {
		return fmt.Errorf("read stream %s: %w", s.name, err)
	}

	var records []T
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			s.quarantine(fmt.Errorf("%w: %s: %v", models.ErrStorageCorruption, s.path, err))
			records = nil
		}
	}

	var maxID uint64
	for i := range records {
		maxID = max(maxID, P(&records[i]).GetID())
	}
	s.records = records
	s.highWater = max(maxID, s.readHighWater())
	return nil
}

// quarantine renames a corrupt stream file so it can be inspected later.
func (s *Stream[T, P]) quarantine(cause error) {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, aside); err != nil {
		s.log.Errorw("stream_quarantine_failed", "stream", s.name, "err", err)
	}
	s.log.Errorw("stream_corrupt_starting_empty", "stream", s.name, "err", cause, "moved_to", aside)
}

func (s *Stream[T, P]) readHighWater() uint64 {
	raw, err := readFileIfExists(s.seqPath)
	if err != nil || len(raw) == 0 {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		s.log.Warnw("stream_seq_unreadable", "stream", s.name, "err", err)
		return 0
	}
	return v
}

// persist writes the high-water mark first so an interrupted write can only
// skip ids, never hand one out twice.
func (s *Stream[T, P]) persist(records []T, highWater uint64) error {
	if highWater != s.highWater {
		if err := writeFileAtomic(s.seqPath, []byte(strconv.FormatUint(highWater, 10)+"\n")); err != nil {
			return err
		}
	}
	return writeJSONArrayAtomic(s.path, records)
}

// Append assigns the next id, clears the synced flag and persists the stream.
func (s *Stream[T, P]) Append(rec T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.highWater + 1
	p := P(&rec)
	p.SetID(id)
	if p.IsSynced() {
		var zero T
		return zero, fmt.Errorf("append to %s: record must not be synced", s.name)
	}

	next := append(slices.Clip(s.records), rec)
	if err := s.persist(next, id); err != nil {
		var zero T
		return zero, err
	}
	s.records = next
	s.highWater = id
	return rec, nil
}

// ListUnsynced returns copies of the records not yet delivered, in id order.
func (s *Stream[T, P]) ListUnsynced() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0, len(s.records))
	for i := range s.records {
		if !P(&s.records[i]).IsSynced() {
			out = append(out, s.records[i])
		}
	}
	return out
}

// MarkSynced flips the flag of the given ids. Already synced or unknown ids
// are ignored, so calling it twice is harmless.
func (s *Stream[T, P]) MarkSynced(ids []uint64) (int, error) {
	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return s.markWhere(func(p P) bool {
		_, ok := want[p.GetID()]
		return ok
	})
}

// MarkSyncedUIDs is MarkSynced keyed by uid, used to mirror delivery into
// the historical stream.
func (s *Stream[T, P]) MarkSyncedUIDs(uids []string) (int, error) {
	want := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		want[uid] = struct{}{}
	}
	return s.markWhere(func(p P) bool {
		_, ok := want[p.GetUID()]
		return ok
	})
}

func (s *Stream[T, P]) markWhere(match func(P) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.records)
	changed := 0
	for i := range next {
		p := P(&next[i])
		if !p.IsSynced() && match(p) {
			p.SetSynced()
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.persist(next, s.highWater); err != nil {
		return 0, err
	}
	s.records = next
	return changed, nil
}

// Prune drops synced records older than cutoff. Unsynced records are kept
// whatever their age.
func (s *Stream[T, P]) Prune(cutoff time.Time) (int, error) {
	return s.removeWhere(func(p P) bool {
		return p.IsSynced() && p.RecordedAt().Before(cutoff)
	})
}

// PurgeSynced drops every synced record; pending streams use it once a
// batch is confirmed.
func (s *Stream[T, P]) PurgeSynced() (int, error) {
	return s.removeWhere(func(p P) bool { return p.IsSynced() })
}

func (s *Stream[T, P]) removeWhere(drop func(P) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]T, 0, len(s.records))
	for i := range s.records {
		if !drop(P(&s.records[i])) {
			next = append(next, s.records[i])
		}
	}
	removed := len(s.records) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.persist(next, s.highWater); err != nil {
		return 0, err
	}
	s.records = next
	return removed, nil
}

// Stats reports the total and unsynced record counts.
func (s *Stream[T, P]) Stats() (total, unsynced int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if !P(&s.records[i]).IsSynced() {
			unsynced++
		}
	}
	return len(s.records), unsynced
}

// Name is the stream file base name.
func (s *Stream[T, P]) Name() string { return s.name }
