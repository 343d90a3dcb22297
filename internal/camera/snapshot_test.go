package camera

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegServer(t *testing.T, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRig_CaptureWritesFramesPerCamera(t *testing.T) {
	dir := t.TempDir()
	picam := jpegServer(t, nil)
	webcam := jpegServer(t, nil)

	rig, err := Open(context.Background(), dir, []Camera{
		{Name: "picam", URL: picam.URL},
		{Name: "webcam", URL: webcam.URL},
	}, time.Second)
	require.NoError(t, err)
	defer rig.Close()

	assert.Equal(t, []string{"picam", "webcam"}, rig.Names())

	frames, ok := rig.Capture(context.Background(), "2026-10-19T12:00:00.000001")
	require.True(t, ok)
	assert.Equal(t, []string{"2026-10-19T12:00:00.000001.jpg", "2026-10-19T12:00:00.000001.jpg"}, frames)

	data, err := os.ReadFile(filepath.Join(dir, "webcam_frames", frames[1]))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, data)
}

func TestRig_CaptureFailureIsSoft(t *testing.T) {
	var fail atomic.Bool
	srv := jpegServer(t, &fail)

	rig, err := Open(context.Background(), t.TempDir(), []Camera{{Name: "picam", URL: srv.URL}}, time.Second)
	require.NoError(t, err)

	fail.Store(true)
	frames, ok := rig.Capture(context.Background(), "t1")
	assert.False(t, ok)
	assert.Nil(t, frames)

	fail.Store(false)
	_, ok = rig.Capture(context.Background(), "t2")
	assert.True(t, ok)
}

func TestOpen_UnreachableCamera(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := jpegServer(t, &fail)

	_, err := Open(context.Background(), t.TempDir(), []Camera{{Name: "webcam", URL: srv.URL}}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webcam")

	_, err = Open(context.Background(), t.TempDir(), nil, time.Second)
	assert.Error(t, err)
}
