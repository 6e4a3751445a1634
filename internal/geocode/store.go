// Package geocode maintains the durable postcode coordinate cache and resolves
// missing postcodes against an external lookup service. The cache only ever
// grows: existing entries are never overwritten, so a coordinate observed once
// stays stable across runs.
package geocode

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	apperrors "donorcli/internal/errors"
	"donorcli/pkg/contracts/domain"
)

// cache CSV column order; this layout is load-bearing because downstream
// tooling reads the file directly
var cacheHeader = []string{"postcode", "latitude", "longitude", "admin_district", "admin_county", "country"}

// Store is the in-memory view of the postcode cache, keyed by canonical
// postcode. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.GeocodeRecord
	path    string
}

// NewStore creates an empty store persisted at path.
func NewStore(path string) *Store {
	return &Store{
		records: make(map[string]domain.GeocodeRecord),
		path:    path,
	}
}

// Load reads the cache file into memory. A missing file is not an error; the
// store simply starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewStorageError("failed to open postcode cache", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return apperrors.NewStorageError("failed to read postcode cache", err)
	}
	if len(rows) == 0 {
		return nil
	}

	for i, row := range rows[1:] {
		if len(row) < len(cacheHeader) {
			return apperrors.NewStorageError(
				fmt.Sprintf("postcode cache row %d has %d columns, want %d", i+2, len(row), len(cacheHeader)), nil)
		}
		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("postcode cache row %d: invalid latitude %q", i+2, row[1]), err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("postcode cache row %d: invalid longitude %q", i+2, row[2]), err)
		}
		s.records[row[0]] = domain.GeocodeRecord{
			Postcode:      row[0],
			Latitude:      lat,
			Longitude:     lon,
			AdminDistrict: row[3],
			AdminCounty:   row[4],
			Country:       row[5],
		}
	}
	return nil
}

// Get returns the cached record for a canonical postcode.
func (s *Store) Get(postcode string) (domain.GeocodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[postcode]
	return rec, ok
}

// Has reports whether the postcode is already cached.
func (s *Store) Has(postcode string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[postcode]
	return ok
}

// Len returns the number of cached postcodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns all cached postcodes in lexicographic order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge adds records for postcodes not yet present. Existing entries win; the
// cache never mutates a stored coordinate. Returns the number of records
// actually inserted.
func (s *Store) Merge(records []domain.GeocodeRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		if rec.Postcode == "" {
			continue
		}
		if _, exists := s.records[rec.Postcode]; exists {
			continue
		}
		s.records[rec.Postcode] = rec
		inserted++
	}
	return inserted
}

// Save writes the full cache to disk in sorted order. The write goes through a
// temp file and an atomic rename so a crash mid-write cannot corrupt the
// durable cache.
func (s *Store) Save() error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys)+1)
	rows = append(rows, cacheHeader)
	for _, k := range keys {
		rec := s.records[k]
		rows = append(rows, []string{
			rec.Postcode,
			strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
			strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
			rec.AdminDistrict,
			rec.AdminCounty,
			rec.Country,
		})
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create cache directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".postcode_cache_*.csv")
	if err != nil {
		return apperrors.NewStorageError("failed to create temp cache file", err)
	}
	tmpName := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write postcode cache", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close temp cache file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace postcode cache", err)
	}
	return nil
}
