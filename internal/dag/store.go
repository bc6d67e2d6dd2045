package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/brianvoe/gofakeit/v6"

	"github.com/ai-tel/mcp-gateway/internal/tool"
)

const (
	codeDagExists   = "DAG_EXISTS"
	codeDagNotFound = "DAG_NOT_FOUND"
)

// RunInfo describes one (fabricated) DAG run.
type RunInfo struct {
	RunID         string `json:"runId"`
	State         string `json:"state"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate,omitempty"`
	ExecutionDate string `json:"executionDate"`
}

// Info is the registry's view of one DAG.
type Info struct {
	DagID       string   `json:"dagId"`
	Description string   `json:"description,omitempty"`
	Schedule    string   `json:"schedule"`
	IsPaused    bool     `json:"isPaused"`
	LastRun     *RunInfo `json:"lastRun,omitempty"`
	FilePath    string   `json:"filePath"`
	CreatedAt   string   `json:"createdAt"`
}

// Store keeps registered DAGs as .py files under dir, with in-memory metadata
// rebuilt lazily for files that predate the process.
type Store struct {
	dir   string
	faker *gofakeit.Faker

	mu   sync.Mutex
	meta map[string]Info
}

// NewStore builds a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		faker: gofakeit.New(0),
		meta:  map[string]Info{},
	}
}

func (s *Store) filePath(dagID string) string {
	return filepath.Join(s.dir, dagID+".py")
}

// Save writes the DAG file and records metadata. Fails with DAG_EXISTS when
// the id is taken and overwrite is false.
func (s *Store) Save(dagID, code string, overwrite bool) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Info{}, err
	}

	path := s.filePath(dagID)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return Info{}, tool.Errorf(codeDagExists, "DAG '%s' already exists. Set overwrite=true to replace.", dagID)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return Info{}, err
	}

	info := Info{
		DagID:       dagID,
		Description: extractDescription(code),
		Schedule:    extractSchedule(code),
		LastRun:     s.mockLastRun(),
		FilePath:    path,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.meta[dagID] = info
	return info, nil
}

// Get returns metadata for dagID, rehydrating from disk when the file exists
// but the process has no record of it.
func (s *Store) Get(dagID string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(dagID)
}

func (s *Store) getLocked(dagID string) (Info, error) {
	if info, ok := s.meta[dagID]; ok {
		return info, nil
	}
	path := s.filePath(dagID)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Info{}, tool.Errorf(codeDagNotFound, "DAG '%s' not found", dagID)
	}
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, tool.Errorf(codeDagNotFound, "DAG '%s' not found", dagID)
	}
	info := Info{
		DagID:       dagID,
		Description: extractDescription(string(raw)),
		Schedule:    extractSchedule(string(raw)),
		LastRun:     s.mockLastRun(),
		FilePath:    path,
		CreatedAt:   st.ModTime().UTC().Format(time.RFC3339),
	}
	s.meta[dagID] = info
	return info, nil
}

// List returns up to limit DAGs whose ids match pattern (doublestar glob,
// "" or "*" matches everything), in filename order.
func (s *Store) List(pattern string, limit int) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	if pattern == "" {
		pattern = "*"
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	out := []Info{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		dagID := strings.TrimSuffix(e.Name(), ".py")
		ok, err := doublestar.Match(pattern, dagID)
		if err != nil {
			return nil, fmt.Errorf("bad id pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		info, err := s.getLocked(dagID)
		if err != nil {
			continue
		}
		out = append(out, info)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Code returns the stored Python source of dagID.
func (s *Store) Code(dagID string) (string, error) {
	raw, err := os.ReadFile(s.filePath(dagID))
	if err != nil {
		return "", tool.Errorf(codeDagNotFound, "DAG '%s' not found", dagID)
	}
	return string(raw), nil
}

// Delete removes the DAG file and metadata. Returns false when absent.
func (s *Store) Delete(dagID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.filePath(dagID)); err != nil {
		return false
	}
	delete(s.meta, dagID)
	return true
}

// mockLastRun fabricates a recent run for roughly 70% of lookups.
func (s *Store) mockLastRun() *RunInfo {
	if s.faker.Float64Range(0, 1) > 0.7 {
		return nil
	}
	run := s.mockRun(1, []string{"success", "failed", "running", "queued"})
	return &run
}

func (s *Store) mockRun(daysBack int, states []string) RunInfo {
	state := s.faker.RandomString(states)
	start := time.Now().UTC().Add(-time.Duration(s.faker.IntRange(0, daysBack*24*3600)) * time.Second)
	run := RunInfo{
		RunID:         "scheduled__" + start.Format(time.RFC3339),
		State:         state,
		StartDate:     start.Format(time.RFC3339),
		ExecutionDate: start.Format(time.RFC3339),
	}
	if state != "running" && state != "queued" {
		end := start.Add(time.Duration(s.faker.IntRange(60, 600)) * time.Second)
		run.EndDate = end.Format(time.RFC3339)
	}
	return run
}

var (
	docstringRe   = regexp.MustCompile(`(?s)DAG\([^)]*\)\s*:\s*"""([^"]*)"""`)
	descriptionRe = regexp.MustCompile(`description\s*=\s*['"]([^'"]+)['"]`)
	intervalRe    = regexp.MustCompile(`schedule_interval\s*=\s*['"]([^'"]+)['"]`)
	scheduleRe    = regexp.MustCompile(`schedule\s*=\s*['"]([^'"]+)['"]`)
)

func extractDescription(code string) string {
	if m := docstringRe.FindStringSubmatch(code); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := descriptionRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}

func extractSchedule(code string) string {
	if m := intervalRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	if m := scheduleRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return "@daily"
}
