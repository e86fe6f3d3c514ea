// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecog

import "math"

// SampleRange converts a segment to the half-open sample index range
// [start, end) at the given rate. Bounds are rounded half to even.
func SampleRange(seg Segment, rate float64) (start, end int) {
	return int(math.RoundToEven(seg.Start * rate)), int(math.RoundToEven(seg.End * rate))
}

// MaskSegments returns a copy of a with every sample that falls in a bad
// segment set to fill. Time is the first axis of a; indices outside it are
// ignored.
func MaskSegments(a Array, rate float64, segs Segments, fill float64) Array {
	out := a.Clone()
	if len(out.Shape) == 0 {
		return out
	}

	// Union of the masked ranges, applied in one pass over the time axis.
	n, stride := out.Len(), out.Stride()
	masked := make([]bool, n)
	for _, seg := range segs {
		start, end := SampleRange(seg, rate)
		for i := max(start, 0); i < min(end, n); i++ {
			masked[i] = true
		}
	}

	for i, bad := range masked {
		if !bad {
			continue
		}
		sub := out.Data[i*stride : (i+1)*stride]
		for j := range sub {
			sub[j] = fill
		}
	}

	return out
}
