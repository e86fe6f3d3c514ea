// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecog

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

// SegmentFormat identifies the encoding of a bad-segment file.
type SegmentFormat int

const (
	FormatText SegmentFormat = iota // Text event log of timestamped begin/end rows
	FormatMAT                       // MAT-file holding a badTimeSegments matrix
)

// segmentVariable is the MAT-file variable holding the bad segments.
const segmentVariable = "badTimeSegments"

// eventTimeScale converts raw event log timestamps to seconds.
const eventTimeScale = 1e-8

func (f SegmentFormat) String() string {
	switch f {
	case FormatMAT:
		return "mat"
	default:
		return "text"
	}
}

// DetectSegmentFormat selects the bad-segment format from a file name's extension.
func DetectSegmentFormat(name string) SegmentFormat {
	if path.Ext(name) == ".mat" {
		return FormatMAT
	}
	return FormatText
}

// ReadBadSegments reads the named bad-segment file, in either format, into a
// table sorted by start time.
func ReadBadSegments(fsys fs.FS, name string) (Segments, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeSegments(f, DetectSegmentFormat(name))
}

// DecodeSegments decodes a bad-segment table of the given format.
func DecodeSegments(r io.Reader, format SegmentFormat) (Segments, error) {
	var (
		segs Segments
		err  error
	)
	switch format {
	case FormatMAT:
		segs, err = decodeMATSegments(r)
	default:
		segs, err = decodeTextSegments(r)
	}
	if err != nil {
		return nil, err
	}

	segs.sort()
	return segs, nil
}

func decodeMATSegments(r io.Reader) (Segments, error) {
	v, err := readMATVariable(r, segmentVariable)
	if err != nil {
		return nil, fmt.Errorf("error reading bad segments: %w", err)
	}
	if len(v.Dims) != 2 || v.Dims[1] < 2 {
		return nil, fmt.Errorf("%w: %s has shape %v, expected (n, >=2)", ErrMalformedSegments, segmentVariable, v.Dims)
	}

	m := v.Array()
	segs := make(Segments, m.Len())
	for i := range segs {
		row := m.At(i).Data
		segs[i] = Segment{Start: row[0], End: row[1]}
	}

	return segs, nil
}

type event struct {
	secs  float64
	begin bool
}

// decodeTextSegments pairs rows 2i and 2i+1 of an event log into one segment.
// Within a pair the begin row gives the start. Pairs with matching tags are
// taken in row order.
func decodeTextSegments(r io.Reader) (Segments, error) {
	var events []event

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedSegments, line, len(fields))
		}

		raw, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing bad segment time on line %d: %w", line, err)
		}
		events = append(events, event{secs: float64(raw) * eventTimeScale, begin: fields[2] == "b"})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading bad segments: %w", err)
	}

	if len(events)%2 != 0 {
		return nil, fmt.Errorf("%w: %d events", ErrUnpairedEvent, len(events))
	}

	segs := make(Segments, 0, len(events)/2)
	for i := 0; i < len(events); i += 2 {
		first, second := events[i], events[i+1]
		if !first.begin && second.begin {
			first, second = second, first
		}
		segs = append(segs, Segment{Start: first.secs, End: second.secs})
	}

	return segs, nil
}
