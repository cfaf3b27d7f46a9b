package normalize

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

// NetworkENVAQN is the BC ENV air-quality network.
const NetworkENVAQN = "ENV-AQN"

// ENV-AQN hourly CSV column layout.
const (
	aqnColTime = iota
	aqnColStationID
	aqnColStationName
	aqnColParameter
	aqnColAirParameter
	aqnColInstrument
	aqnColRawValue
	aqnColUnit
	aqnColStatus
	aqnColAircodeStatus
	aqnColStatusDescription
	aqnColReportedValue
	aqnColumns
)

// unitSubstitutions maps the feed's unit spellings to names the unit
// converter understands.
var unitSubstitutions = map[string]string{
	"% RH": "%",
	"°C":   "celsius",
	"mb":   "millibar",
	"Deg":  "degree",
}

// aqnTimeLayouts are the timestamp shapes observed in the feed. Times are
// reported in Pacific local time without an offset.
var aqnTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// ENVAQN normalizes the hourly air-quality CSV feed.
type ENVAQN struct{}

func (ENVAQN) Network() string { return NetworkENVAQN }

// Normalize parses the feed, skipping the header row, rows with empty
// values, and rows whose fields cannot be parsed.
func (ENVAQN) Normalize(r io.Reader, logger *slog.Logger) ([]domain.RawRecord, int, error) {
	loc, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		return nil, 0, fmt.Errorf("load pacific timezone: %w", err)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("parse ENV-AQN csv: %w", err)
	}

	var recs []domain.RawRecord
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < aqnColumns {
			logger.Warn("ENV-AQN row has too few columns",
				"line", i+1, "columns", len(row))
			skipped++
			continue
		}

		rawVal := strings.TrimSpace(row[aqnColReportedValue])
		if rawVal == "" {
			// Empty readings are routine, not malformed.
			continue
		}
		value, err := strconv.ParseFloat(rawVal, 64)
		if err != nil {
			logger.Warn("ENV-AQN value is not numeric",
				"line", i+1, "value", rawVal)
			skipped++
			continue
		}

		ts, err := parseInLocation(aqnTimeLayouts, row[aqnColTime], loc)
		if err != nil {
			logger.Warn("ENV-AQN timestamp unparsable",
				"line", i+1, "time", row[aqnColTime])
			skipped++
			continue
		}

		unit := strings.TrimSpace(row[aqnColUnit])
		if sub, ok := unitSubstitutions[unit]; ok {
			unit = sub
		}

		recs = append(recs, domain.RawRecord{
			NetworkName:  NetworkENVAQN,
			StationID:    strings.TrimSpace(row[aqnColStationID]),
			VariableName: strings.TrimSpace(row[aqnColParameter]),
			Unit:         unit,
			Value:        &value,
			Time:         ts,
		})
	}
	return recs, skipped, nil
}

func parseInLocation(layouts []string, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
