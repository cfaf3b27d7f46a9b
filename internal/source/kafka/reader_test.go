package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsumer serves queued messages and records which offsets were
// committed.
type fakeConsumer struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	commitErr error
	closed    bool
}

func (f *fakeConsumer) FetchMessage(_ context.Context) (kafkago.Message, error) {
	if len(f.msgs) == 0 {
		return kafkago.Message{}, context.DeadlineExceeded
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeConsumer) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func testReader(fc *fakeConsumer) *Reader {
	return &Reader{consumer: fc, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func recordMessage(offset int64) kafkago.Message {
	return kafkago.Message{
		Offset: offset,
		Value:  []byte(`{"network_name":"ENV-AQN","station_id":"0260011","variable_name":"TEMP_MEAN","unit":"celsius","value":4.5,"time":"2024-03-05T14:00:00Z"}`),
	}
}

func TestFetchBatchHoldsOffsets(t *testing.T) {
	fc := &fakeConsumer{msgs: []kafkago.Message{recordMessage(10), recordMessage(11)}}
	r := testReader(fc)

	recs, skipped, err := r.FetchBatch(context.Background(), 10, time.Second)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Zero(t, skipped)
	assert.Empty(t, fc.committed, "fetching alone must not commit offsets")

	require.NoError(t, r.CommitRead(context.Background()))
	assert.Len(t, fc.committed, 2)
	assert.EqualValues(t, 11, fc.committed[1].Offset)

	// The pending set drains on commit; a second commit is a no-op.
	require.NoError(t, r.CommitRead(context.Background()))
	assert.Len(t, fc.committed, 2)
}

func TestFetchBatchSkipsMalformedButTracksThem(t *testing.T) {
	bad := kafkago.Message{Offset: 20, Value: []byte("not-json{{{")}
	fc := &fakeConsumer{msgs: []kafkago.Message{bad, recordMessage(21)}}
	r := testReader(fc)

	recs, skipped, err := r.FetchBatch(context.Background(), 10, time.Second)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 1, skipped)

	// Malformed messages still advance the group once the run commits,
	// so they are not refetched forever.
	require.NoError(t, r.CommitRead(context.Background()))
	assert.Len(t, fc.committed, 2)
}

func TestCommitReadKeepsPendingOnError(t *testing.T) {
	fc := &fakeConsumer{msgs: []kafkago.Message{recordMessage(30)}, commitErr: errors.New("broker gone")}
	r := testReader(fc)

	_, _, err := r.FetchBatch(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Error(t, r.CommitRead(context.Background()))

	fc.commitErr = nil
	require.NoError(t, r.CommitRead(context.Background()))
	assert.Len(t, fc.committed, 1)
}

func TestFetchBatchStopsAtMax(t *testing.T) {
	fc := &fakeConsumer{msgs: []kafkago.Message{recordMessage(1), recordMessage(2), recordMessage(3)}}
	r := testReader(fc)

	recs, _, err := r.FetchBatch(context.Background(), 2, time.Second)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Len(t, r.pending, 2, "unfetched messages stay on the broker")
}

func TestMapMessageToRecord(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		msg := kafkago.Message{
			Value: []byte(`{"network_name":"ENV-AQN","station_id":"0260011","lat":49.28,"lon":-123.12,"variable_name":"TEMP_MEAN","unit":"celsius","value":4.5,"time":"2024-03-05T14:00:00Z"}`),
		}
		rec, err := mapMessageToRecord(msg)
		require.NoError(t, err)
		assert.Equal(t, "ENV-AQN", rec.NetworkName)
		assert.Equal(t, "0260011", rec.StationID)
		require.NotNil(t, rec.Lat)
		assert.Equal(t, 49.28, *rec.Lat)
		assert.Equal(t, "TEMP_MEAN", rec.VariableName)
		require.NotNil(t, rec.Value)
		assert.Equal(t, 4.5, *rec.Value)
		assert.Equal(t, time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC), rec.Time.UTC())
	})

	t.Run("missing time falls back to message time", func(t *testing.T) {
		msgTime := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
		msg := kafkago.Message{
			Value: []byte(`{"network_name":"ENV-AQN","station_id":"0260011","variable_name":"TEMP_MEAN","value":4.5}`),
			Time:  msgTime,
		}
		rec, err := mapMessageToRecord(msg)
		require.NoError(t, err)
		assert.Equal(t, msgTime, rec.Time)
	})

	t.Run("optional fields stay nil", func(t *testing.T) {
		msg := kafkago.Message{
			Value: []byte(`{"network_name":"ENV-AQN","station_id":"0260011","variable_name":"TEMP_MEAN","value":4.5,"time":"2024-03-05T14:00:00Z"}`),
		}
		rec, err := mapMessageToRecord(msg)
		require.NoError(t, err)
		assert.Nil(t, rec.Lat)
		assert.Nil(t, rec.Lon)
		assert.Empty(t, rec.Unit)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := mapMessageToRecord(kafkago.Message{Value: []byte("not-json{{{")})
		require.Error(t, err)
	})
}
