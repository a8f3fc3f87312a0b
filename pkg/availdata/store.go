package availdata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store loads the "currently available" datasets from local JSON/JSONL
// files into memory. Read-only after load.
type Store struct {
	baseDir string

	mu      sync.Mutex
	catalog map[string]string // dataset name -> file path
	cache   map[string]*Frame
}

// NewStore builds a store over the given directory and scans its catalog.
// A missing directory yields an empty (but usable) store.
func NewStore(baseDir string) *Store {
	s := &Store{
		baseDir: baseDir,
		catalog: map[string]string{},
		cache:   map[string]*Frame{},
	}
	s.buildCatalog()
	return s
}

func (s *Store) buildCatalog() {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return
	}
	// .jsonl takes precedence over .json with the same stem.
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") {
			s.catalog[strings.TrimSuffix(name, ".jsonl")] = filepath.Join(s.baseDir, name)
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			stem := strings.TrimSuffix(name, ".json")
			if _, ok := s.catalog[stem]; !ok {
				s.catalog[stem] = filepath.Join(s.baseDir, name)
			}
		}
	}
}

// ListDatasets returns the sorted dataset names.
func (s *Store) ListDatasets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.catalog))
	for name := range s.catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasDataset reports whether the dataset exists in the catalog.
func (s *Store) HasDataset(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.catalog[name]
	return ok
}

// GetFrame loads (or returns the cached) dataset.
func (s *Store) GetFrame(name string) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.cache[name]; ok {
		return f, nil
	}
	path, ok := s.catalog[name]
	if !ok {
		return nil, fmt.Errorf("dataset not found: %s", name)
	}
	f, err := loadFrame(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}
	s.cache[name] = f
	return f, nil
}

// Schema returns the dataset's column names.
func (s *Store) Schema(name string) ([]string, error) {
	f, err := s.GetFrame(name)
	if err != nil {
		return nil, err
	}
	return f.Columns, nil
}

// Put registers an in-memory dataset directly. Intended for tests and
// embedded hosts.
func (s *Store) Put(name string, f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[name] = ""
	s.cache[name] = f
}

func loadFrame(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if strings.HasSuffix(path, ".jsonl") {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	}

	return framesFromRecords(records), nil
}

// framesFromRecords builds a Frame with a deterministic column order: the
// union of record keys, sorted, with time-like columns first.
func framesFromRecords(records []map[string]any) *Frame {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		ti, tj := isTimeName(cols[i]), isTimeName(cols[j])
		if ti != tj {
			return ti
		}
		return cols[i] < cols[j]
	})

	f := &Frame{Columns: cols}
	for _, rec := range records {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = rec[c]
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

func isTimeName(name string) bool {
	n := strings.ToLower(name)
	for _, c := range timeColumnCandidates {
		if n == c {
			return true
		}
	}
	return false
}
