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
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MAT-file level 5 data types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
)

// MAT-file array classes holding plain numeric data.
const (
	mxDOUBLE = 6
	mxUINT64 = 15
)

const matHeaderSize = 128

// matVariable is a numeric variable read from a MAT-file, stored column-major.
type matVariable struct {
	Name string
	Dims []int
	Data []float64
}

// Array returns the variable as a row-major array.
func (v *matVariable) Array() Array {
	a := NewArray(0, v.Dims...)
	idx := make([]int, len(v.Dims))
	for i := range a.Data {
		// Column-major offset of the row-major multi-index idx.
		off, step := 0, 1
		for d := range v.Dims {
			off += idx[d] * step
			step *= v.Dims[d]
		}
		a.Data[i] = v.Data[off]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < v.Dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	return a
}

// readMATVariable reads the named numeric variable from a MAT-file level 5 stream.
func readMATVariable(r io.Reader, name string) (*matVariable, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading MAT-file: %w", err)
	}
	if len(b) < matHeaderSize {
		return nil, fmt.Errorf("%w: short MAT-file header", ErrInvalidFile)
	}

	var order binary.ByteOrder
	switch string(b[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a level 5 MAT-file", ErrUnsupportedFormat)
	}
	if version := order.Uint16(b[124:126]); version != 0x0100 {
		return nil, fmt.Errorf("%w: MAT-file version %#04x", ErrUnsupportedFormat, version)
	}

	rest := b[matHeaderSize:]
	for len(rest) > 0 {
		typ, data, next, err := readElement(order, rest)
		if err != nil {
			return nil, err
		}
		rest = next

		if typ == miCOMPRESSED {
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("error decompressing MAT-file element: %w", err)
			}
			inflated, err := io.ReadAll(zr)
			if err != nil {
				return nil, fmt.Errorf("error decompressing MAT-file element: %w", err)
			}
			if typ, data, _, err = readElement(order, inflated); err != nil {
				return nil, err
			}
		}

		if typ != miMATRIX {
			continue
		}

		v, err := parseMatrix(order, data, name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
}

// element is a decoded data element tag and its payload.
type element struct {
	typ  uint32
	data []byte
}

// parseMatrix decodes a miMATRIX element body. It returns nil if the matrix is not named name.
func parseMatrix(order binary.ByteOrder, b []byte, name string) (*matVariable, error) {
	// Array flags, dimensions, name and real part.
	sub := make([]element, 0, 4)
	for len(b) > 0 && len(sub) < 4 {
		typ, data, next, err := readElement(order, b)
		if err != nil {
			return nil, err
		}
		sub = append(sub, element{typ: typ, data: data})
		b = next
	}
	if len(sub) < 3 {
		return nil, fmt.Errorf("%w: truncated MAT-file matrix", ErrInvalidFile)
	}

	if string(sub[2].data) != name {
		return nil, nil
	}

	if len(sub[0].data) < 4 {
		return nil, fmt.Errorf("%w: bad array flags", ErrInvalidFile)
	}
	class := order.Uint32(sub[0].data[0:4]) & 0xff
	if class < mxDOUBLE || class > mxUINT64 {
		return nil, fmt.Errorf("%w: %s is not a numeric array (class %d)", ErrUnsupportedFormat, name, class)
	}

	dims, err := decodeNumeric(order, sub[1].typ, sub[1].data)
	if err != nil {
		return nil, err
	}
	v := &matVariable{Name: name, Dims: make([]int, len(dims))}
	n := 1
	for i, d := range dims {
		v.Dims[i] = int(d)
		n *= int(d)
	}

	if n == 0 {
		v.Data = []float64{}
		return v, nil
	}
	if len(sub) < 4 {
		return nil, fmt.Errorf("%w: %s has no data", ErrInvalidFile, name)
	}

	if v.Data, err = decodeNumeric(order, sub[3].typ, sub[3].data); err != nil {
		return nil, err
	}
	if len(v.Data) != n {
		return nil, fmt.Errorf("%w: %s has %d elements, expected %d", ErrInvalidFile, name, len(v.Data), n)
	}

	return v, nil
}

// readElement reads one tagged data element from b, returning its type, its
// payload and the remainder of b after padding.
func readElement(order binary.ByteOrder, b []byte) (uint32, []byte, []byte, error) {
	if len(b) < 8 {
		return 0, nil, nil, fmt.Errorf("%w: truncated MAT-file element tag", ErrInvalidFile)
	}

	typ := order.Uint32(b[0:4])

	// Small data element: size in the upper 16 bits, data in the last 4 tag bytes.
	if size := typ >> 16; size != 0 {
		if size > 4 {
			return 0, nil, nil, fmt.Errorf("%w: small element of %d bytes", ErrInvalidFile, size)
		}
		return typ & 0xffff, b[4 : 4+size], b[8:], nil
	}

	size := int(order.Uint32(b[4:8]))
	if size > len(b)-8 {
		return 0, nil, nil, fmt.Errorf("%w: element of %d bytes exceeds file", ErrInvalidFile, size)
	}
	data := b[8 : 8+size]

	// Compressed elements are not padded.
	end := 8 + size
	if typ != miCOMPRESSED {
		end = min(8+(size+7)/8*8, len(b))
	}

	return typ, data, b[end:], nil
}

// decodeNumeric decodes the payload of a numeric data element.
func decodeNumeric(order binary.ByteOrder, typ uint32, b []byte) ([]float64, error) {
	var width int
	switch typ {
	case miINT8, miUINT8:
		width = 1
	case miINT16, miUINT16:
		width = 2
	case miINT32, miUINT32, miSINGLE:
		width = 4
	case miDOUBLE, miINT64, miUINT64:
		width = 8
	default:
		return nil, fmt.Errorf("%w: MAT-file data type %d", ErrUnsupportedFormat, typ)
	}
	if len(b)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes of data type %d", ErrInvalidFile, len(b), typ)
	}

	v := make([]float64, len(b)/width)
	for i := range v {
		p := b[i*width : (i+1)*width]
		switch typ {
		case miINT8:
			v[i] = float64(int8(p[0]))
		case miUINT8:
			v[i] = float64(p[0])
		case miINT16:
			v[i] = float64(int16(order.Uint16(p)))
		case miUINT16:
			v[i] = float64(order.Uint16(p))
		case miINT32:
			v[i] = float64(int32(order.Uint32(p)))
		case miUINT32:
			v[i] = float64(order.Uint32(p))
		case miSINGLE:
			v[i] = float64(math.Float32frombits(order.Uint32(p)))
		case miDOUBLE:
			v[i] = math.Float64frombits(order.Uint64(p))
		case miINT64:
			v[i] = float64(int64(order.Uint64(p)))
		case miUINT64:
			v[i] = float64(order.Uint64(p))
		}
	}

	return v, nil
}
