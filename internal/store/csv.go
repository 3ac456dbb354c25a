package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// Columns is the dataset header, in file order.
var Columns = []string{
	"Title", "Description", "Publication Date",
	"date_time", "scale", "location", "intensity",
	"latitude", "longitude",
}

// CSVStore is a CSV-backed dataset held in memory between writes. It assumes
// a single writer process; the mutex only guards concurrent readers (the HTTP
// API) against an in-flight merge.
type CSVStore struct {
	path        string
	rotateBytes int64
	logger      *slog.Logger

	mu     sync.RWMutex
	exists bool
	events []domain.EarthquakeEvent // newest first
	seen   map[string]struct{}      // descriptions
}

// Open loads the dataset at path. A missing or empty file is not an error;
// the first merge creates it. rotateBytes <= 0 disables rotation.
func Open(path string, rotateBytes int64, logger *slog.Logger) (*CSVStore, error) {
	s := &CSVStore{
		path:        path,
		rotateBytes: rotateBytes,
		logger:      logger,
		seen:        make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	events, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := s.loadArchives(); err != nil {
		return nil, err
	}
	s.setEvents(events)
	s.exists = len(events) > 0
	return s, nil
}

// loadArchives marks every description in the numbered archives as seen, so
// events rotated out of the primary file are never appended again.
func (s *CSVStore) loadArchives() error {
	for n := 1; ; n++ {
		name := archivePath(s.path, n)
		f, err := os.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		events, err := decode(f)
		f.Close() //nolint:errcheck,gosec // read-only
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		s.markSeen(events)
	}
}

// Path returns the primary dataset path.
func (s *CSVStore) Path() string { return s.path }

// Len returns the number of persisted events.
func (s *CSVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Latest returns up to n events, newest first.
func (s *CSVStore) Latest(n int) []domain.EarthquakeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	n = min(n, len(s.events))
	out := make([]domain.EarthquakeEvent, n)
	copy(out, s.events[:n])
	return out
}

// Newest returns the most recent persisted event.
func (s *CSVStore) Newest() (domain.EarthquakeEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return domain.EarthquakeEvent{}, false
	}
	return s.events[0], true
}

// Contains reports whether an event with this exact description is persisted.
func (s *CSVStore) Contains(description string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[description]
	return ok
}

// MergeAndPersist prepends events (newest first) to the dataset and commits
// the result. It is a no-op when the newest event is already the dataset's
// newest, or when every event is already persisted, archives included. The
// primary file is replaced atomically. When the merged dataset would exceed
// the rotation threshold the previous file is moved to the next free archive
// name and the new primary starts with only this batch's events.
func (s *CSVStore) MergeAndPersist(events []domain.EarthquakeEvent) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(events) == 0 {
		return MergeResult{Outcome: OutcomeNoNewData}, nil
	}
	if len(s.events) > 0 && events[0].SameAs(s.events[0]) {
		return MergeResult{Outcome: OutcomeNoNewData}, nil
	}

	fresh := s.unseen(events)
	if len(fresh) == 0 {
		return MergeResult{Outcome: OutcomeNoNewData}, nil
	}

	merged := make([]domain.EarthquakeEvent, 0, len(fresh)+len(s.events))
	merged = append(merged, fresh...)
	merged = append(merged, s.events...)

	data, err := encode(merged)
	if err != nil {
		return MergeResult{}, err
	}

	result := MergeResult{Outcome: OutcomeCreated, Added: fresh}
	if s.exists {
		result.Outcome = OutcomeAppended
	}

	if s.exists && s.rotateBytes > 0 && int64(len(data)) > s.rotateBytes {
		primary, err := encode(fresh)
		if err != nil {
			return MergeResult{}, err
		}
		archive, err := s.rotateAndWrite(primary)
		if err != nil {
			return MergeResult{}, err
		}
		result.Outcome = OutcomeRotated
		result.ArchivePath = archive
		merged = fresh
	} else if err := s.writeAtomic(data); err != nil {
		return MergeResult{}, err
	}

	s.setEvents(merged)
	s.exists = true
	return result, nil
}

// unseen filters out events already persisted or repeated within the batch,
// preserving order.
func (s *CSVStore) unseen(events []domain.EarthquakeEvent) []domain.EarthquakeEvent {
	batch := make(map[string]struct{}, len(events))
	var out []domain.EarthquakeEvent
	for _, e := range events {
		if _, ok := s.seen[e.Description]; ok {
			continue
		}
		if _, ok := batch[e.Description]; ok {
			continue
		}
		batch[e.Description] = struct{}{}
		out = append(out, e)
	}
	return out
}

// setEvents replaces the primary snapshot. Seen descriptions are kept, so
// archived events stay deduplicated after a rotation.
func (s *CSVStore) setEvents(events []domain.EarthquakeEvent) {
	s.events = events
	s.markSeen(events)
}

func (s *CSVStore) markSeen(events []domain.EarthquakeEvent) {
	for _, e := range events {
		s.seen[e.Description] = struct{}{}
	}
}

func (s *CSVStore) writeAtomic(data []byte) error {
	tmp, err := s.writeTemp(data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}

func (s *CSVStore) rotateAndWrite(data []byte) (string, error) {
	tmp, err := s.writeTemp(data)
	if err != nil {
		return "", err
	}

	archive, err := NextArchivePath(s.path)
	if err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return "", err
	}
	if err := os.Rename(s.path, archive); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("archive dataset: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		// Put the previous dataset back so the primary path stays readable.
		if rerr := os.Rename(archive, s.path); rerr != nil {
			s.logger.Error("restore archived dataset failed", "archive", archive, "error", rerr)
		}
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("replace dataset: %w", err)
	}

	s.logger.Info("dataset archived", "archive", archive, "bytes", len(data))
	return archive, nil
}

// writeTemp writes data to a synced temporary file next to the dataset.
func (s *CSVStore) writeTemp(data []byte) (string, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp dataset: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()       //nolint:errcheck,gosec // already failing
		os.Remove(name) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("write temp dataset: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()       //nolint:errcheck,gosec // already failing
		os.Remove(name) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("sync temp dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("close temp dataset: %w", err)
	}
	return name, nil
}

// NextArchivePath returns the first unused "<stem>_<N><ext>" name for path,
// probing N = 1, 2, ...
func NextArchivePath(path string) (string, error) {
	for n := 1; ; n++ {
		candidate := archivePath(path, n)
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe archive name: %w", err)
		}
	}
}

func archivePath(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}

func encode(events []domain.EarthquakeEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for _, e := range events {
		if err := w.Write(toRecord(e)); err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(r io.Reader) ([]domain.EarthquakeEvent, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDataset, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimPrefix(h, "\ufeff")] = i
	}
	for _, c := range Columns {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrCorruptDataset, c)
		}
	}

	events := make([]domain.EarthquakeEvent, 0, len(rows)-1)
	for i, row := range rows[1:] {
		e, err := fromRecord(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrCorruptDataset, i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func toRecord(e domain.EarthquakeEvent) []string {
	var lat, lon string
	if e.Coordinate != nil {
		lat = formatFloat(e.Coordinate.Lat)
		lon = formatFloat(e.Coordinate.Lon)
	}
	var scale string
	if e.Magnitude != nil {
		scale = formatFloat(*e.Magnitude)
	}
	return []string{
		e.Title, e.Description, e.PubDate,
		e.DateTime, scale, e.Location, e.Intensity,
		lat, lon,
	}
}

func fromRecord(row []string, colIdx map[string]int) (domain.EarthquakeEvent, error) {
	get := func(col string) string { return row[colIdx[col]] }

	e := domain.EarthquakeEvent{
		BulletinItem: domain.BulletinItem{
			Title:       get("Title"),
			Description: get("Description"),
			PubDate:     get("Publication Date"),
		},
		ExtractedFields: domain.ExtractedFields{
			DateTime:  get("date_time"),
			Location:  get("location"),
			Intensity: get("intensity"),
		},
	}

	scale, err := parseOptionalFloat(get("scale"))
	if err != nil {
		return e, fmt.Errorf("scale: %w", err)
	}
	e.Magnitude = scale

	lat, err := parseOptionalFloat(get("latitude"))
	if err != nil {
		return e, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseOptionalFloat(get("longitude"))
	if err != nil {
		return e, fmt.Errorf("longitude: %w", err)
	}
	if lat != nil && lon != nil {
		c := domain.Coordinate{Lat: *lat, Lon: *lon}
		if !c.Valid() {
			return e, fmt.Errorf("coordinate out of range: %v", c)
		}
		e.Coordinate = &c
	}
	return e, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
