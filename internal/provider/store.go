package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// StoreFileName is the document the store keeps inside its directory
const StoreFileName = "providers.json"

var (
	// ErrNotFound is returned when no stored provider matches a lookup
	ErrNotFound = errors.New("provider not found")
	// ErrAmbiguous is returned when a lookup matches several providers equally
	ErrAmbiguous = errors.New("provider name is ambiguous")
)

// storedDataset is the on-disk form of a dataset
type storedDataset struct {
	Dataset
	LastUpdated time.Time `json:"lastUpdated"`
}

// Store persists the imported dataset as a single JSON document
type Store struct {
	mu   sync.RWMutex
	path string
	now  func() time.Time
}

// NewStore creates a store rooted at dir, creating the directory if needed
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create store directory %s: %w", dir, err)
	}
	return &Store{path: filepath.Join(dir, StoreFileName), now: time.Now}, nil
}

// Path returns the location of the stored document
func (s *Store) Path() string {
	return s.path
}

// Save replaces the stored dataset and stamps it with the current time
func (s *Store) Save(ds *Dataset) error {
	if ds == nil {
		return errors.New("dataset cannot be nil")
	}
	for _, p := range ds.Providers {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(storedDataset{Dataset: *ds, LastUpdated: s.now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode providers: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write providers: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace providers: %w", err)
	}
	return nil
}

// Load returns the stored dataset, or nil when nothing has been saved
func (s *Store) Load() (*Dataset, error) {
	stored, err := s.read()
	if err != nil || stored == nil {
		return nil, err
	}
	return &stored.Dataset, nil
}

// LastUpdated returns when the dataset was saved; ok is false when empty
func (s *Store) LastUpdated() (t time.Time, ok bool, err error) {
	stored, err := s.read()
	if err != nil || stored == nil {
		return time.Time{}, false, err
	}
	return stored.LastUpdated, !stored.LastUpdated.IsZero(), nil
}

// Exists reports whether a dataset has been saved
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.path)
	return err == nil
}

// Clear removes the stored dataset
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear providers: %w", err)
	}
	return nil
}

func (s *Store) read() (*storedDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read providers: %w", err)
	}

	var stored storedDataset
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return &stored, nil
}

// Find returns the provider whose name equals name case-insensitively, or
// else the single closest fuzzy match. When several providers match equally
// well the lookup fails with ErrAmbiguous naming them
func (ds *Dataset) Find(name string) (Record, error) {
	name = strings.TrimSpace(name)
	for _, p := range ds.Providers {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}

	ranks := ds.rank(name)
	switch {
	case len(ranks) == 0:
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	case len(ranks) == 1 || ranks[0].Distance < ranks[1].Distance:
		return ds.Providers[ranks[0].OriginalIndex], nil
	}

	var tied []string
	for _, r := range ranks {
		if r.Distance != ranks[0].Distance {
			break
		}
		tied = append(tied, r.Target)
	}
	return Record{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguous, name, strings.Join(tied, ", "))
}

// Search returns providers whose name fuzzily contains term, closest first.
// An empty term returns every provider
func (ds *Dataset) Search(term string) []Record {
	if strings.TrimSpace(term) == "" {
		return append([]Record(nil), ds.Providers...)
	}

	ranks := ds.rank(term)
	out := make([]Record, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, ds.Providers[r.OriginalIndex])
	}
	return out
}

// rank fuzzily matches term against the provider names, closest first
func (ds *Dataset) rank(term string) fuzzy.Ranks {
	names := make([]string, len(ds.Providers))
	for i, p := range ds.Providers {
		names[i] = p.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(term, names)
	sort.Stable(ranks)
	return ranks
}

// USStates are the jurisdictions recognized as license column prefixes
var USStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY", "DC",
}

// LicensedIn reports whether the provider has data in a column named after the
// state code, either exactly ("TX") or as a prefix ("TX License")
func (r Record) LicensedIn(state string) bool {
	state = strings.ToUpper(strings.TrimSpace(state))
	for col := range r.Data {
		if (col == state || strings.HasPrefix(col, state+" ")) && r.Has(col) {
			return true
		}
	}
	return false
}

// ByState returns the records licensed in state, in their original order
func ByState(records []Record, state string) []Record {
	var out []Record
	for _, p := range records {
		if p.LicensedIn(state) {
			out = append(out, p)
		}
	}
	return out
}

// StateCounts returns, per state code, how many providers are licensed there.
// States without providers are omitted
func (ds *Dataset) StateCounts() map[string]int {
	counts := make(map[string]int)
	for _, st := range USStates {
		for _, p := range ds.Providers {
			if p.LicensedIn(st) {
				counts[st]++
			}
		}
	}
	return counts
}
