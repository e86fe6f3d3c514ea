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

// MATDouble is a double matrix for WriteMAT, stored row-major.
type MATDouble struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// WriteMAT writes a little-endian MAT-file level 5 holding the given variables.
func WriteMAT(w io.Writer, compress bool, vars ...MATDouble) error {
	hdr := make([]byte, matHeaderSize)
	copy(hdr, fmt.Sprintf("%-116s", "MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: Mon Jan  1 00:00:00 2018"))
	for i := 116; i < 124; i++ {
		hdr[i] = ' '
	}
	binary.LittleEndian.PutUint16(hdr[124:126], 0x0100)
	copy(hdr[126:128], "IM")
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	for _, v := range vars {
		elem := matrixElement(v)
		if compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			if _, err := zw.Write(elem); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			elem = append(tag(miCOMPRESSED, z.Len()), z.Bytes()...)
		}
		if _, err := w.Write(elem); err != nil {
			return err
		}
	}

	return nil
}

func matrixElement(v MATDouble) []byte {
	var body []byte

	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags[0:4], mxDOUBLE)
	body = append(body, tag(miUINT32, 8)...)
	body = append(body, flags...)

	dims := make([]byte, 8)
	binary.LittleEndian.PutUint32(dims[0:4], uint32(v.Rows))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(v.Cols))
	body = append(body, tag(miINT32, 8)...)
	body = append(body, dims...)

	if len(v.Name) <= 4 {
		small := make([]byte, 8)
		binary.LittleEndian.PutUint32(small[0:4], uint32(len(v.Name))<<16|miINT8)
		copy(small[4:], v.Name)
		body = append(body, small...)
	} else {
		body = append(body, tag(miINT8, len(v.Name))...)
		body = append(body, pad([]byte(v.Name))...)
	}

	values := make([]byte, 8*len(v.Data))
	for c := 0; c < v.Cols; c++ {
		for r := 0; r < v.Rows; r++ {
			off := 8 * (c*v.Rows + r)
			binary.LittleEndian.PutUint64(values[off:off+8], math.Float64bits(v.Data[r*v.Cols+c]))
		}
	}
	body = append(body, tag(miDOUBLE, len(values))...)
	body = append(body, values...)

	return append(tag(miMATRIX, len(body)), body...)
}

func tag(typ uint32, size int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], typ)
	binary.LittleEndian.PutUint32(b[4:8], uint32(size))
	return b
}

func pad(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}
