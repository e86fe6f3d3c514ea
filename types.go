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
	"fmt"
	"math"
	"slices"
)

// ParmKind is the HTK parameter kind, a base kind in the low 6 bits plus qualifier flags.
type ParmKind uint16

const (
	Waveform ParmKind = 0 // Sampled waveform, int16
	IREFC    ParmKind = 5 // Reflection coefficients, int16
	User     ParmKind = 9 // User defined features, float32

	// Qualifier flags.
	Compressed ParmKind = 0o2000
	Checksum   ParmKind = 0o10000
)

// Base returns the parameter kind without qualifier flags.
func (k ParmKind) Base() ParmKind {
	return k & 0x3f
}

// Header represents the HTK file header.
type Header struct {
	Samples      int      // Number of sample vectors
	SamplePeriod int      // Sample period field, as stored
	SampleSize   int      // Number of bytes per sample vector
	ParmKind     ParmKind // Parameter kind and qualifiers
}

// Rate returns the sample rate scalar derived from the sample period field.
func (h Header) Rate() float64 {
	return float64(h.SamplePeriod) * 1e-4
}

// DType selects the precision samples are stored at.
type DType int

const (
	Float32 DType = iota
	Float64
)

func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	default:
		return "float32"
	}
}

// Convert rounds v to the precision of d.
func (d DType) Convert(v float64) float64 {
	if d == Float32 {
		return float64(float32(v))
	}
	return v
}

// Array is an n-dimensional row-major array of samples. The first axis is time
// for channel data and channel for block data.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates an array of the given shape with every element set to fill.
func NewArray(fill float64, shape ...int) Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = fill
	}
	return Array{Shape: slices.Clone(shape), Data: data}
}

// Len returns the length of the first axis, or 0 for a 0-d array.
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Stride returns the number of elements in one step along the first axis.
func (a Array) Stride() int {
	n := 1
	for _, d := range a.Shape[min(1, len(a.Shape)):] {
		n *= d
	}
	return n
}

// Squeeze returns the array with every axis of length 1 removed.
func (a Array) Squeeze() Array {
	shape := make([]int, 0, len(a.Shape))
	for _, d := range a.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return Array{Shape: shape, Data: a.Data}
}

// Clone returns a deep copy of the array.
func (a Array) Clone() Array {
	return Array{Shape: slices.Clone(a.Shape), Data: slices.Clone(a.Data)}
}

// At returns the i'th slice along the first axis. The result shares memory with a.
func (a Array) At(i int) Array {
	stride := a.Stride()
	return Array{
		Shape: slices.Clone(a.Shape[1:]),
		Data:  a.Data[i*stride : (i+1)*stride],
	}
}

// Segment is a bad time interval, in seconds.
type Segment struct {
	Start float64 // Start time in seconds
	End   float64 // End time in seconds
}

// Segments is a bad-segment table ordered by start time.
type Segments []Segment

func (s Segments) sort() {
	slices.SortStableFunc(s, func(a, b Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
}

// Transform is applied to each channel's data before it is stored in a block.
// It may change the channel shape, but every channel must come out with the
// same shape.
type Transform func(Array) (Array, error)

// Block is one recording session's assembled channel data.
type Block struct {
	Basedir     string   // Base directory of the block
	Subdir      string   // Data subdirectory the channels were read from
	Data        Array    // Channel data, first axis is the 0-indexed channel
	Rate        float64  // Sample rate scalar of channel 1, before any transform
	BadChannels []int    // Excluded channels, 1-based
	BadSegments Segments // Bad time segments applied to the data
}

// Channel returns the data of channel n (1-based). The result shares memory with the block.
func (b *Block) Channel(n int) Array {
	return b.Data.At(n - 1)
}

func (b *Block) String() string {
	nan := 0
	for _, v := range b.Data.Data {
		if math.IsNaN(v) {
			nan++
		}
	}
	return fmt.Sprintf("Block(basedir=%q, subdir=%q, shape=%v, rate=%g, badchan=%v, badsegs=%d, nan=%d)",
		b.Basedir, b.Subdir, b.Data.Shape, b.Rate, b.BadChannels, len(b.BadSegments), nan)
}
