package normalize

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const aqnHeader = "DATE_PST,EMS_ID,STATION_NAME,PARAMETER,AIR_PARAMETER,INSTRUMENT,RAW_VALUE,UNIT,STATUS,AIRCODESTATUS,STATUS_DESCRIPTION,REPORTED_VALUE"

func aqnFeed(rows ...string) io.Reader {
	return strings.NewReader(aqnHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestENVAQNNormalize(t *testing.T) {
	t.Run("well-formed rows", func(t *testing.T) {
		feed := aqnFeed(
			"2024-03-05 14:00,0260011,Vancouver Kits,TEMP_MEAN,TEMP,THERMISTOR,4.53,°C,1,,Validated,4.5",
			"2024-03-05 14:00,0260011,Vancouver Kits,HUMIDITY,RH,HYGROMETER,55.2,% RH,1,,Validated,55.0",
		)
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, recs, 2)

		rec := recs[0]
		assert.Equal(t, NetworkENVAQN, rec.NetworkName)
		assert.Equal(t, "0260011", rec.StationID)
		assert.Equal(t, "TEMP_MEAN", rec.VariableName)
		assert.Equal(t, "celsius", rec.Unit, "feed spelling replaced")
		require.NotNil(t, rec.Value)
		assert.Equal(t, 4.5, *rec.Value, "reported value wins over raw value")
		assert.Nil(t, rec.Lat)
		assert.Nil(t, rec.Lon)

		assert.Equal(t, "%", recs[1].Unit)

		// Feed times are Pacific local time.
		loc, err := time.LoadLocation("America/Vancouver")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 5, 14, 0, 0, 0, loc), rec.Time.In(loc))
	})

	t.Run("empty reported value is routine", func(t *testing.T) {
		feed := aqnFeed(
			"2024-03-05 14:00,0260011,Vancouver Kits,TEMP_MEAN,TEMP,THERMISTOR,,°C,1,,Validated,",
			"2024-03-05 15:00,0260011,Vancouver Kits,TEMP_MEAN,TEMP,THERMISTOR,5.1,°C,1,,Validated,5.1",
		)
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped, "empty readings are not counted as malformed")
		assert.Len(t, recs, 1)
	})

	t.Run("non-numeric value skipped and counted", func(t *testing.T) {
		feed := aqnFeed(
			"2024-03-05 14:00,0260011,Vancouver Kits,TEMP_MEAN,TEMP,THERMISTOR,x,°C,1,,Validated,not-a-number",
		)
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		assert.Empty(t, recs)
	})

	t.Run("unparsable timestamp skipped and counted", func(t *testing.T) {
		feed := aqnFeed(
			"05/03/2024 2pm,0260011,Vancouver Kits,TEMP_MEAN,TEMP,THERMISTOR,4.5,°C,1,,Validated,4.5",
		)
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		assert.Empty(t, recs)
	})

	t.Run("short row skipped and counted", func(t *testing.T) {
		feed := aqnFeed("2024-03-05 14:00,0260011,Vancouver Kits")
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		assert.Empty(t, recs)
	})

	t.Run("alternate timestamp layouts", func(t *testing.T) {
		feed := aqnFeed(
			"2024-03-05 14:00:00,0260011,S,TEMP_MEAN,TEMP,TH,4.5,°C,1,,V,4.5",
			"2024-03-05T14:00:00,0260011,S,TEMP_MEAN,TEMP,TH,4.5,°C,1,,V,4.5",
		)
		recs, skipped, err := ENVAQN{}.Normalize(feed, discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Len(t, recs, 2)
		assert.Equal(t, recs[0].Time, recs[1].Time)
	})

	t.Run("header only", func(t *testing.T) {
		recs, skipped, err := ENVAQN{}.Normalize(strings.NewReader(aqnHeader+"\n"), discardLogger())
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Empty(t, recs)
	})
}
