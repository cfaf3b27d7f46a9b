// Package report maintains the error-report artifact: an appendable CSV
// of rejected input rows with their original field values and a free-text
// reason, reusable for later re-processing attempts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

var header = []string{
	"reported_at", "run_id", "network_name", "station_id", "lat", "lon",
	"variable_name", "unit", "value", "time", "reason",
}

// Writer appends rejected rows to an error report.
type Writer struct {
	csv        *csv.Writer
	runID      string
	needHeader bool
	rows       int
}

// NewWriter writes an error report to w. Set writeHeader when w is empty
// (a fresh file); appending to an existing report must not repeat the
// header.
func NewWriter(w io.Writer, runID string, writeHeader bool) *Writer {
	return &Writer{csv: csv.NewWriter(w), runID: runID, needHeader: writeHeader}
}

// OpenFile opens (or creates) an error report at path for appending and
// returns a Writer positioned after any existing rows.
func OpenFile(path, runID string) (*Writer, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open error report: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat error report: %w", err)
	}
	return NewWriter(f, runID, info.Size() == 0), f, nil
}

// Add appends one rejected record with its reason.
func (w *Writer) Add(rec domain.RawRecord, reason string) error {
	if w.needHeader {
		if err := w.csv.Write(header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
		w.needHeader = false
	}
	row := []string{
		domain.Now().UTC().Format(time.RFC3339),
		w.runID,
		rec.NetworkName,
		rec.StationID,
		formatFloat(rec.Lat),
		formatFloat(rec.Lon),
		rec.VariableName,
		rec.Unit,
		formatFloat(rec.Value),
		formatTime(rec.Time),
		reason,
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush pushes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Read parses an error report back into raw records for re-processing.
// The reason column is discarded; malformed rows are skipped and counted.
func Read(r io.Reader) ([]domain.RawRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("parse error report: %w", err)
	}

	var recs []domain.RawRecord
	skipped := 0
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) != len(header) {
			skipped++
			continue
		}
		t, err := time.Parse(time.RFC3339, row[9])
		if err != nil {
			skipped++
			continue
		}
		recs = append(recs, domain.RawRecord{
			NetworkName:  row[2],
			StationID:    row[3],
			Lat:          parseFloat(row[4]),
			Lon:          parseFloat(row[5]),
			VariableName: row[6],
			Unit:         row[7],
			Value:        parseFloat(row[8]),
			Time:         t,
		})
	}
	return recs, skipped, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
