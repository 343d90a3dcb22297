// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package episode

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ReadRecords loads every row of an episode's CSV log.
func ReadRecords(dir string) ([]Record, error) {
	f, err := os.Open(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, fmt.Errorf("episode csv: %w", err)
	}
	defer f.Close()
	return ParseRecords(f)
}

// ParseRecords reads a CSV log laid out as produced by Header.
func ParseRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("episode csv header: %w", err)
	}
	if len(header) == 0 || header[0] != "timestamp" {
		return nil, fmt.Errorf("episode csv header: first column must be timestamp, got %q", header)
	}

	var angleCols, frameCols []int
	for i, name := range header[1:] {
		switch {
		case strings.HasPrefix(name, "angle"):
			angleCols = append(angleCols, i+1)
		case strings.HasSuffix(name, "_frame"):
			frameCols = append(frameCols, i+1)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("episode csv line %d: %w", line, err)
		}

		rec := Record{Timestamp: row[0], Angles: make([]float64, len(angleCols))}
		for i, col := range angleCols {
			if rec.Angles[i], err = strconv.ParseFloat(row[col], 64); err != nil {
				return nil, fmt.Errorf("episode csv line %d: %s: %w", line, header[col], err)
			}
		}
		if len(frameCols) > 0 {
			rec.Frames = make([]string, len(frameCols))
			for i, col := range frameCols {
				rec.Frames[i] = row[col]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseStamp parses a record timestamp as local time.
func ParseStamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}
