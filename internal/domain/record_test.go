package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func TestRawRecordComplete(t *testing.T) {
	full := RawRecord{
		NetworkName:  "ENV-AQN",
		StationID:    "0260011",
		Lat:          fptr(49.28),
		Lon:          fptr(-123.12),
		VariableName: "TEMP_MEAN",
		Unit:         "celsius",
		Value:        fptr(4.5),
		Time:         time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
	}
	assert.True(t, full.Complete())

	t.Run("coordinates and unit are optional", func(t *testing.T) {
		r := full
		r.Lat, r.Lon, r.Unit = nil, nil, ""
		assert.True(t, r.Complete())
		assert.False(t, r.HasCoords())
	})

	t.Run("missing network", func(t *testing.T) {
		r := full
		r.NetworkName = ""
		assert.False(t, r.Complete())
	})

	t.Run("missing station id", func(t *testing.T) {
		r := full
		r.StationID = ""
		assert.False(t, r.Complete())
	})

	t.Run("missing value", func(t *testing.T) {
		r := full
		r.Value = nil
		assert.False(t, r.Complete())
	})

	t.Run("zero time", func(t *testing.T) {
		r := full
		r.Time = time.Time{}
		assert.False(t, r.Complete())
	})

	t.Run("half a coordinate pair is no pair", func(t *testing.T) {
		r := full
		r.Lon = nil
		assert.True(t, r.Complete())
		assert.False(t, r.HasCoords())
	})
}

func TestResultConstructors(t *testing.T) {
	obs := Observation{HistoryID: 12, VarsID: 3, Datum: 1.5}

	res := Accepted(obs)
	assert.True(t, res.Accepted)
	assert.Equal(t, obs, res.Obs)
	assert.Empty(t, res.Reason)

	rej := Rejected(RejectUnitMismatch)
	assert.False(t, rej.Accepted)
	assert.Equal(t, RejectUnitMismatch, rej.Reason)
}
