package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/san-kum/mlplay/internal/playground"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Columns []string    `json:"columns"`
	Ticks   []int       `json:"ticks"`
	Elapsed []float64   `json:"elapsed_ms"`
	Rows    [][]float64 `json:"rows"`
}

func writeCSV(w io.Writer, columns []string, records []playground.Record) error {
	cw := csv.NewWriter(w)
	header := append([]string{"tick", "elapsed_ms"}, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Tick),
			strconv.FormatFloat(float64(r.Elapsed)/float64(time.Millisecond), 'f', 3, 64),
		}
		for _, c := range columns {
			row = append(row, strconv.FormatFloat(r.Values[c], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes records as tick, elapsed_ms and one column per value.
func WriteCSV(w io.Writer, records []playground.Record) error {
	return writeCSV(w, Columns(records), records)
}

// ExportCSV copies a stored trajectory to w.
func (s *Store) ExportCSV(runID string, w io.Writer) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	traj, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"tick", "elapsed_ms"}, traj.Columns...)); err != nil {
		return err
	}
	for i, row := range traj.Rows {
		out := []string{
			strconv.Itoa(traj.Ticks[i]),
			strconv.FormatFloat(float64(traj.Elapsed[i])/float64(time.Millisecond), 'f', 3, 64),
		}
		for _, v := range row {
			out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes a run's metadata and trajectory as one document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	traj, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Run:     *meta,
		Columns: traj.Columns,
		Ticks:   traj.Ticks,
		Elapsed: make([]float64, len(traj.Elapsed)),
		Rows:    traj.Rows,
	}
	for i, e := range traj.Elapsed {
		data.Elapsed[i] = float64(e) / float64(time.Millisecond)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportJSONFile is ExportJSON into a new file at path.
func (s *Store) ExportJSONFile(runID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.ExportJSON(runID, f)
}
