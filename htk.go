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
	"io/fs"
	"math"
)

// headerSize is the size of the HTK file header in bytes.
const headerSize = 12

// Reader reads HTK files.
type Reader struct {
	r   *bufio.Reader
	hdr *Header

	vecLen int
	scale  []float32 // A coefficients of a compressed file
	bias   []float32 // B coefficients of a compressed file
}

// Open opens an HTK file for reading.
func Open(r io.Reader) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, headerSize)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w: %w", ErrNotHTK, err)
	}

	hdr := &Header{
		Samples:      int(int32(binary.BigEndian.Uint32(b[0:4]))),
		SamplePeriod: int(int32(binary.BigEndian.Uint32(b[4:8]))),
		SampleSize:   int(binary.BigEndian.Uint16(b[8:10])),
		ParmKind:     ParmKind(binary.BigEndian.Uint16(b[10:12])),
	}
	if hdr.Samples < 0 || hdr.SampleSize <= 0 {
		return nil, fmt.Errorf("%w: samples=%d sample size=%d", ErrNotHTK, hdr.Samples, hdr.SampleSize)
	}

	hr := &Reader{r: reader, hdr: hdr}

	if hr.int16Samples() {
		if hdr.SampleSize%2 != 0 {
			return nil, fmt.Errorf("%w: odd sample size %d", ErrInvalidFile, hdr.SampleSize)
		}
		hr.vecLen = hdr.SampleSize / 2
	} else {
		if hdr.SampleSize%4 != 0 {
			return nil, fmt.Errorf("%w: sample size %d is not a multiple of 4", ErrInvalidFile, hdr.SampleSize)
		}
		hr.vecLen = hdr.SampleSize / 4
	}

	if hdr.ParmKind&Compressed != 0 {
		if hdr.ParmKind.Base() == IREFC {
			hr.scale = fill32(hr.vecLen, 32767)
			hr.bias = fill32(hr.vecLen, 0)
		} else {
			var err error
			if hr.scale, err = readFloat32s(reader, hr.vecLen); err != nil {
				return nil, fmt.Errorf("error reading compression scale: %w", err)
			}
			if hr.bias, err = readFloat32s(reader, hr.vecLen); err != nil {
				return nil, fmt.Errorf("error reading compression bias: %w", err)
			}
		}
	}

	return hr, nil
}

// Header returns the parsed file header.
func (hr *Reader) Header() Header {
	return *hr.hdr
}

// SamplePeriod returns the sample period field of the header.
func (hr *Reader) SamplePeriod() int {
	return hr.hdr.SamplePeriod
}

// ReadAll reads every remaining sample vector. The result has shape (vectors, vector length).
func (hr *Reader) ReadAll() (Array, error) {
	payload, err := io.ReadAll(hr.r)
	if err != nil {
		return Array{}, fmt.Errorf("error reading sample data: %w", err)
	}

	if hr.hdr.ParmKind&Checksum != 0 {
		if len(payload) < 2 {
			return Array{}, fmt.Errorf("%w: missing checksum", ErrInvalidFile)
		}
		payload = payload[:len(payload)-2]
	}

	width := 4
	if hr.int16Samples() {
		width = 2
	}
	vectors := len(payload) / (width * hr.vecLen)
	data := make([]float64, vectors*hr.vecLen)

	for i := range data {
		off := i * width
		if width == 2 {
			v := float32(int16(binary.BigEndian.Uint16(payload[off : off+2])))
			if hr.scale != nil {
				j := i % hr.vecLen
				v = (v + hr.bias[j]) / hr.scale[j]
			}
			data[i] = float64(v)
		} else {
			data[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(payload[off : off+4])))
		}
	}

	return Array{Shape: []int{vectors, hr.vecLen}, Data: data}, nil
}

func (hr *Reader) int16Samples() bool {
	return hr.hdr.ParmKind&Compressed != 0 || hr.hdr.ParmKind.Base() == Waveform
}

// ChannelFile is an open per-channel file.
type ChannelFile interface {
	// SamplePeriod returns the raw sample period field of the file header.
	SamplePeriod() int
	// ReadAll returns every sample in the file.
	ReadAll() (Array, error)
	io.Closer
}

// Opener opens the named channel file in fsys.
type Opener func(fsys fs.FS, name string) (ChannelFile, error)

type htkFile struct {
	*Reader
	f fs.File
}

func (hf *htkFile) Close() error {
	return hf.f.Close()
}

// OpenHTK opens the named HTK file in fsys. It is the default Opener.
func OpenHTK(fsys fs.FS, name string) (ChannelFile, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}

	hr, err := Open(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error opening %s: %w", name, err)
	}

	return &htkFile{Reader: hr, f: f}, nil
}

func readFloat32s(r io.Reader, n int) ([]float32, error) {
	v := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}

func fill32(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}
