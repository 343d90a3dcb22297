// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package episode

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFormat names episode directories by their start time.
	DefaultFormat = "episode-20060102-150405"

	DataFile = "data.csv"
	MetaFile = "episode.yaml"
)

// Meta describes an episode; it is written when the episode opens and
// rewritten with the final row count when it closes.
type Meta struct {
	ID         string     `yaml:"id" json:"id"`
	StartedAt  time.Time  `yaml:"started_at" json:"started_at"`
	StoppedAt  *time.Time `yaml:"stopped_at,omitempty" json:"stopped_at,omitempty"`
	Channels   []int      `yaml:"adc_channels" json:"adc_channels"`
	ServoPins  []int      `yaml:"servo_pins" json:"servo_pins"`
	TargetHz   float64    `yaml:"target_hz" json:"target_hz"`
	FilterSize int        `yaml:"filter_size" json:"filter_size"`
	Cameras    []string   `yaml:"cameras,omitempty" json:"cameras,omitempty"`
	Rows       int        `yaml:"rows" json:"rows"`
}

// Episode is one recording session directory with its CSV log.
type Episode struct {
	dir string

	mu     sync.Mutex
	meta   Meta
	file   *os.File
	w      *csv.Writer
	closed bool
}

// Open creates "<dataDir>/<start time formatted with format>" and writes the
// CSV header and initial metadata. meta.ID and meta.StartedAt are filled in
// when empty.
func Open(dataDir, format string, meta Meta) (*Episode, error) {
	if format == "" {
		format = DefaultFormat
	}
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	dir := filepath.Join(dataDir, meta.StartedAt.Format(format))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("episode dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, fmt.Errorf("episode csv: %w", err)
	}

	e := &Episode{dir: dir, meta: meta, file: f, w: csv.NewWriter(f)}
	if err := e.w.Write(Header(len(meta.Channels), meta.Cameras)); err != nil {
		f.Close()
		return nil, fmt.Errorf("episode csv header: %w", err)
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("episode csv header: %w", err)
	}
	if err := e.writeMeta(); err != nil {
		f.Close()
		return nil, err
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	log.Printf("episode: directory created at %s", dir)
	return e, nil
}

// Header returns the CSV columns: timestamp, angle1..angleN, <camera>_frame.
func Header(channels int, cameras []string) []string {
	h := []string{"timestamp"}
	for i := 1; i <= channels; i++ {
		h = append(h, "angle"+strconv.Itoa(i))
	}
	for _, c := range cameras {
		h = append(h, c+"_frame")
	}
	return h
}

// Dir returns the episode directory.
func (e *Episode) Dir() string {
	return e.dir
}

// Meta returns a copy of the current metadata.
func (e *Episode) Meta() Meta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta
}

// Write appends one row and flushes it to disk.
func (e *Episode) Write(rec Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("episode %s: closed", e.meta.ID)
	}
	if len(rec.Angles) != len(e.meta.Channels) {
		return fmt.Errorf("episode: got %d angles, want %d", len(rec.Angles), len(e.meta.Channels))
	}

	row := make([]string, 0, 1+len(rec.Angles)+len(e.meta.Cameras))
	row = append(row, rec.Timestamp)
	for _, a := range rec.Angles {
		row = append(row, strconv.FormatFloat(a, 'f', -1, 64))
	}
	for i := range e.meta.Cameras {
		if i < len(rec.Frames) {
			row = append(row, rec.Frames[i])
		} else {
			row = append(row, "")
		}
	}

	if err := e.w.Write(row); err != nil {
		return fmt.Errorf("episode csv write: %w", err)
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("episode csv flush: %w", err)
	}
	e.meta.Rows++
	return nil
}

// Close finalises the metadata and closes the CSV file. Safe to call twice.
func (e *Episode) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	now := time.Now()
	e.meta.StoppedAt = &now

	e.w.Flush()
	flushErr := e.w.Error()
	closeErr := e.file.Close()
	metaErr := e.writeMeta()

	switch {
	case flushErr != nil:
		return fmt.Errorf("episode csv flush: %w", flushErr)
	case closeErr != nil:
		return fmt.Errorf("episode csv close: %w", closeErr)
	case metaErr != nil:
		return metaErr
	}
	log.Printf("episode: %s closed with %d rows", e.meta.ID, e.meta.Rows)
	return nil
}

func (e *Episode) writeMeta() error {
	data, err := yaml.Marshal(e.meta)
	if err != nil {
		return fmt.Errorf("episode meta marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, MetaFile), data, 0o644); err != nil {
		return fmt.Errorf("episode meta write: %w", err)
	}
	return nil
}

// LoadMeta reads the metadata file of an episode directory.
func LoadMeta(dir string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return m, fmt.Errorf("episode meta read: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("episode meta parse: %w", err)
	}
	return m, nil
}
