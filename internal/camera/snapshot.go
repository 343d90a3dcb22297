// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package camera grabs still frames from network cameras that expose a
// snapshot URL (mjpg-streamer, picamera2 HTTP servers, most IP cameras).
// Frames are written exactly as received; no decoding or re-encoding.
package camera

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Camera names one snapshot endpoint.
type Camera struct {
	Name string
	URL  string
}

// FramesDir returns the per-camera frame directory name inside an episode.
func FramesDir(name string) string {
	return name + "_frames"
}

// Rig captures one frame from every camera per call.
type Rig struct {
	cams   []Camera
	dir    string
	client *http.Client
}

// Open prepares frame directories under dir and checks that every camera
// answers a snapshot request.
func Open(ctx context.Context, dir string, cams []Camera, timeout time.Duration) (*Rig, error) {
	if len(cams) == 0 {
		return nil, fmt.Errorf("camera: no cameras configured")
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	r := &Rig{
		cams:   cams,
		dir:    dir,
		client: &http.Client{Timeout: timeout},
	}
	for _, c := range cams {
		if err := os.MkdirAll(filepath.Join(dir, FramesDir(c.Name)), 0o755); err != nil {
			return nil, fmt.Errorf("camera %s: frames dir: %w", c.Name, err)
		}
		if _, err := r.fetch(ctx, c); err != nil {
			return nil, fmt.Errorf("camera %s: %w", c.Name, err)
		}
		log.Printf("camera: %s ready at %s", c.Name, c.URL)
	}
	return r, nil
}

// Names returns the camera names in capture order.
func (r *Rig) Names() []string {
	names := make([]string, len(r.cams))
	for i, c := range r.cams {
		names[i] = c.Name
	}
	return names
}

// Capture stores one frame per camera as "<stamp>.jpg" and returns the file
// names in camera order. ok is false if any camera failed this time; frames
// already written for the tick are left in place.
func (r *Rig) Capture(ctx context.Context, stamp string) (frames []string, ok bool) {
	name := sanitize(stamp) + ".jpg"
	frames = make([]string, 0, len(r.cams))
	for _, c := range r.cams {
		data, err := r.fetch(ctx, c)
		if err != nil {
			log.Printf("camera: %s capture error: %v", c.Name, err)
			return nil, false
		}
		path := filepath.Join(r.dir, FramesDir(c.Name), name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Printf("camera: %s write error: %v", c.Name, err)
			return nil, false
		}
		frames = append(frames, name)
	}
	return frames, true
}

// Close releases idle HTTP connections.
func (r *Rig) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Rig) fetch(ctx context.Context, c Camera) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot")
	}
	return data, nil
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "-", " ", "_").Replace(s)
}
