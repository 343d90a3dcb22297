package episode

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"timestamp", "angle1", "angle2", "angle3", "picam_frame", "webcam_frame"},
		Header(3, []string{"picam", "webcam"}))
	assert.Equal(t, []string{"timestamp", "angle1", "angle2"}, Header(2, nil))
}

func TestEpisode_WriteAndClose(t *testing.T) {
	dataDir := t.TempDir()
	start := time.Date(2026, 10, 19, 14, 30, 5, 0, time.Local)

	e, err := Open(dataDir, "", Meta{
		StartedAt:  start,
		Channels:   []int{0, 1},
		ServoPins:  []int{18, 19},
		TargetHz:   30,
		FilterSize: 10,
		Cameras:    []string{"picam"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "episode-20261019-143005"), e.Dir())
	assert.NotEmpty(t, e.Meta().ID)

	require.NoError(t, e.Write(Record{
		Timestamp: "2026-10-19T14:30:05.000100",
		Angles:    []float64{12.5, 170},
		Frames:    []string{"2026-10-19T14:30:05.000100.jpg"},
	}))
	require.NoError(t, e.Write(Record{
		Timestamp: "2026-10-19T14:30:05.033400",
		Angles:    []float64{13, 169.25},
	}))
	assert.Error(t, e.Write(Record{Angles: []float64{1}}), "angle count must match channels")

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Error(t, e.Write(Record{Angles: []float64{1, 2}}))

	f, err := os.Open(filepath.Join(e.Dir(), DataFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"timestamp", "angle1", "angle2", "picam_frame"},
		{"2026-10-19T14:30:05.000100", "12.5", "170", "2026-10-19T14:30:05.000100.jpg"},
		{"2026-10-19T14:30:05.033400", "13", "169.25", ""},
	}, rows)

	meta, err := LoadMeta(e.Dir())
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, []int{18, 19}, meta.ServoPins)
	assert.Equal(t, []string{"picam"}, meta.Cameras)
	require.NotNil(t, meta.StoppedAt)
	assert.True(t, meta.StartedAt.Equal(start))
}

func TestStamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	assert.Equal(t, "2026-01-02T03:04:05.000006", Stamp(ts))
}

type recordingSink struct {
	records []Record
	err     error
	closed  bool
}

func (r *recordingSink) Write(rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestMulti_DeliversToEverySink(t *testing.T) {
	bad := &recordingSink{err: errors.New("disk full")}
	good := &recordingSink{}
	m := Multi{bad, good}

	err := m.Write(Record{Timestamp: "t"})
	require.Error(t, err)
	assert.Len(t, good.records, 1)

	require.Error(t, m.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
}

type doneToken struct {
	err error
}

func (d *doneToken) Wait() bool                     { return true }
func (d *doneToken) WaitTimeout(time.Duration) bool { return true }
func (d *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (d *doneToken) Error() error { return d.err }

type fakeClient struct {
	mqtt.Client
	topic        string
	retained     bool
	payload      []byte
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.retained = retained
	f.payload = payload.([]byte)
	return &doneToken{}
}

func (f *fakeClient) Disconnect(quiesce uint) {
	f.disconnected = true
}

func TestMQTTSink_PublishesJSON(t *testing.T) {
	client := &fakeClient{}
	s := NewMQTTSink(client, "")

	rec := Record{Timestamp: "2026-10-19T10:00:00.000000", Angles: []float64{90, 45.5}, Frames: []string{"a.jpg"}}
	require.NoError(t, s.Write(rec))

	assert.Equal(t, DefaultTopic, client.topic)
	assert.True(t, client.retained)
	var got Record
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, rec, got)

	require.NoError(t, s.Close())
	assert.True(t, client.disconnected)
}
