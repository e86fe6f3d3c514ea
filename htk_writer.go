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
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer writes uncompressed HTK files.
type Writer struct {
	w       io.WriteSeeker
	hdr     *Header
	vecLen  int
	samples int // Number of sample vectors written so far.
}

// Create creates a new HTK writer that writes to the given writer.
// SampleSize must match the parameter kind: 2 bytes per element for
// Waveform, 4 bytes per element otherwise.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.ParmKind&(Compressed|Checksum) != 0 {
		return nil, fmt.Errorf("%w: writing parameter kind %#o", ErrUnsupportedFormat, hdr.ParmKind)
	}

	width := 4
	if hdr.ParmKind.Base() == Waveform {
		width = 2
	}
	if hdr.SampleSize <= 0 || hdr.SampleSize%width != 0 {
		return nil, fmt.Errorf("%w: sample size %d", ErrInvalidFile, hdr.SampleSize)
	}

	hdr.Samples = 0 // Unknown number of sample vectors (at this time).

	hw := &Writer{w: w, hdr: &hdr, vecLen: hdr.SampleSize / width}

	// Write the initial header
	if err := hw.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return hw, nil
}

// Close finalizes the HTK file by updating the header with the total number of sample vectors.
func (hw *Writer) Close() error {
	hw.hdr.Samples = hw.samples
	if err := hw.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	// Leave the writer positioned after the data.
	if _, err := hw.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	return nil
}

// WriteSamples appends sample vectors, each of the vector length implied by the header.
func (hw *Writer) WriteSamples(vectors ...[]float64) error {
	if _, err := hw.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	writer := bufio.NewWriter(hw.w)

	for _, vec := range vectors {
		if len(vec) != hw.vecLen {
			return fmt.Errorf("expected vector of %d elements, got %d", hw.vecLen, len(vec))
		}

		for _, v := range vec {
			var err error
			if hw.hdr.ParmKind.Base() == Waveform {
				err = binary.Write(writer, binary.BigEndian, int16(math.Round(v)))
			} else {
				err = binary.Write(writer, binary.BigEndian, float32(v))
			}
			if err != nil {
				return err
			}
		}
		hw.samples++
	}

	// Ensure all data is flushed to the underlying writer
	return writer.Flush()
}

// writeHeader writes the HTK header at the start of the file.
func (hw *Writer) writeHeader() error {
	// Rewind to the beginning of the file.
	if _, err := hw.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	b := make([]byte, headerSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(int32(hw.hdr.Samples)))
	binary.BigEndian.PutUint32(b[4:8], uint32(int32(hw.hdr.SamplePeriod)))
	binary.BigEndian.PutUint16(b[8:10], uint16(hw.hdr.SampleSize))
	binary.BigEndian.PutUint16(b[10:12], uint16(hw.hdr.ParmKind))

	_, err := hw.w.Write(b)
	return err
}
