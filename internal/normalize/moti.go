package normalize

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bhawesh96/crmprtd/internal/domain"
)

// NetworkMoTI is the BC Ministry of Transportation road-weather network.
const NetworkMoTI = "MoTIe"

// MoTI normalizes the ministry's CMML XML feed. Each observation-series
// belongs to one station (client id); each observation carries a
// valid-time and one element per measured quantity.
type MoTI struct{}

func (MoTI) Network() string { return NetworkMoTI }

type cmml struct {
	XMLName xml.Name     `xml:"cmml"`
	Series  []cmmlSeries `xml:"data>observation-series"`
}

type cmmlSeries struct {
	Origin struct {
		Type string   `xml:"type,attr"`
		IDs  []cmmlID `xml:"id"`
	} `xml:"origin"`
	Observations []cmmlObservation `xml:"observation"`
}

type cmmlID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type cmmlObservation struct {
	ValidTime string        `xml:"valid-time,attr"`
	Elements  []cmmlElement `xml:",any"`
}

type cmmlElement struct {
	XMLName xml.Name
	Index   string `xml:"index,attr"`
	Type    string `xml:"type,attr"`
	Value   struct {
		Units string `xml:"units,attr"`
		Text  string `xml:",chardata"`
	} `xml:"value"`
}

// Normalize parses a CMML document. Series without a client id,
// observations without a valid time, and non-numeric values are skipped
// with a logged reason.
func (MoTI) Normalize(r io.Reader, logger *slog.Logger) ([]domain.RawRecord, int, error) {
	var doc cmml
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("parse CMML document: %w", err)
	}

	var recs []domain.RawRecord
	skipped := 0
	for _, series := range doc.Series {
		stationID := clientID(series.Origin.IDs)
		if stationID == "" {
			logger.Warn("CMML observation-series has no client id")
			skipped++
			continue
		}

		for _, obs := range series.Observations {
			if obs.ValidTime == "" {
				logger.Warn("CMML observation has no valid-time",
					"native_id", stationID)
				skipped++
				continue
			}
			ts, err := time.Parse(time.RFC3339, obs.ValidTime)
			if err != nil {
				logger.Warn("CMML valid-time unparsable",
					"native_id", stationID, "valid_time", obs.ValidTime)
				skipped++
				continue
			}

			for _, elem := range obs.Elements {
				raw := strings.TrimSpace(elem.Value.Text)
				value, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					logger.Warn("CMML value is not numeric",
						"native_id", stationID,
						"element", elem.XMLName.Local, "value", raw)
					skipped++
					continue
				}
				recs = append(recs, domain.RawRecord{
					NetworkName:  NetworkMoTI,
					StationID:    stationID,
					VariableName: motiVariableName(elem),
					Unit:         elem.Value.Units,
					Value:        &value,
					Time:         ts,
				})
			}
		}
	}
	return recs, skipped, nil
}

func clientID(ids []cmmlID) string {
	for _, id := range ids {
		if id.Type == "client" {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// motiVariableName derives the network's variable naming scheme from the
// element: type qualifier, element name, and sensor index, upper snake
// case. <temperature index="1" type="current-air"> becomes
// CURRENT_AIR_TEMPERATURE1.
func motiVariableName(elem cmmlElement) string {
	name := strings.ToUpper(elem.XMLName.Local)
	if elem.Type != "" {
		qualifier := strings.ToUpper(strings.ReplaceAll(elem.Type, "-", "_"))
		name = qualifier + "_" + name
	}
	return name + elem.Index
}
