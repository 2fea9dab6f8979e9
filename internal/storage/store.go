package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/playground"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Simulator  string             `json:"simulator"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Ticks      int                `json:"ticks"`
	Params     map[string]float64 `json:"params"`
	Metrics    map[string]float64 `json:"metrics"`
	Columns    []string           `json:"columns"`
	Degenerate bool               `json:"degenerate,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// Trajectory is a stored run read back from its CSV.
type Trajectory struct {
	Columns []string
	Ticks   []int
	Elapsed []time.Duration
	Rows    [][]float64
}

// Column returns the series for one value name, or nil.
func (t *Trajectory) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Columns returns the sorted value names seen across records.
func Columns(records []playground.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newRunID(simulator string) string {
	return fmt.Sprintf("%s_%s_%s", simulator, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
}

func (s *Store) Save(result *experiment.Result) (string, error) {
	runID := newRunID(result.Simulator)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	columns := Columns(result.Records)
	meta := RunMetadata{
		ID:         runID,
		Simulator:  result.Simulator,
		Timestamp:  time.Now(),
		Seed:       result.Seed,
		Ticks:      result.Ticks,
		Params:     result.Params,
		Metrics:    result.Metrics,
		Columns:    columns,
		Degenerate: result.Degenerate,
		Reason:     result.Reason,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := writeCSV(csvFile, columns, result.Records); err != nil {
		return "", fmt.Errorf("write trajectory: %w", err)
	}
	return runID, nil
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s metadata: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	traj := &Trajectory{}
	if len(records) == 0 || len(records[0]) < 2 {
		return traj, nil
	}
	traj.Columns = append([]string(nil), records[0][2:]...)

	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		tick, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		ms, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}

		row := make([]float64, len(traj.Columns))
		for j := range row {
			if j+2 >= len(record) {
				break
			}
			if val, err := strconv.ParseFloat(record[j+2], 64); err == nil {
				row[j] = val
			}
		}
		traj.Ticks = append(traj.Ticks, tick)
		traj.Elapsed = append(traj.Elapsed, time.Duration(ms*float64(time.Millisecond)))
		traj.Rows = append(traj.Rows, row)
	}
	return traj, nil
}
