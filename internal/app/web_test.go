package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/arm_recorder/internal/episode"
)

func TestMonitor_LatestAngles(t *testing.T) {
	m := NewMonitor(t.TempDir(), t.TempDir())
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/angles")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	rec := episode.Record{Timestamp: "2026-10-19T10:00:00.000000", Angles: []float64{10, 20}}
	m.Update(rec)

	resp, err = http.Get(srv.URL + "/api/angles")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got episode.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rec, got)
}

func TestMonitor_WebsocketStream(t *testing.T) {
	m := NewMonitor(t.TempDir(), t.TempDir())
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	first := episode.Record{Timestamp: "t1", Angles: []float64{1}}
	m.Update(first)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got episode.Record
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, first, got)

	second := episode.Record{Timestamp: "t2", Angles: []float64{2}}
	m.Update(second)
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, second, got)
}

func TestMonitor_Episodes(t *testing.T) {
	dataDir := t.TempDir()
	e, err := episode.Open(dataDir, "", episode.Meta{Channels: []int{0}, ServoPins: []int{18}})
	require.NoError(t, err)
	require.NoError(t, e.Write(episode.Record{Timestamp: "t", Angles: []float64{42}}))
	require.NoError(t, e.Close())

	m := NewMonitor(dataDir, t.TempDir())
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/episodes")
	require.NoError(t, err)
	var list []EpisodeSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Meta.Rows)

	resp, err = http.Get(srv.URL + "/episodes/" + list[0].Name + "/" + episode.DataFile)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,angle1\nt,42\n", string(body))
}
