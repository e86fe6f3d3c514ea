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
	"os"
	"path"
	"slices"
)

// ReadBlock loads every channel file of the block in basedir into a Block.
//
// Channel 1 is always read first and fixes the sample rate and the per-channel
// shape. Excluded channels, and every sample inside a bad segment, are NaN when
// replacement is enabled (the default). A transform set with WithTransform may
// change the channel shape, but all channels must share it; the block's Rate
// is not adjusted for it.
func ReadBlock(basedir string, opts ...Option) (*Block, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.fsys == nil {
		o.fsys = os.DirFS(basedir)
	}

	b := &Block{Basedir: basedir, Subdir: o.subdir}

	// Electrodes (channels) are numbered starting with 1.
	var err error
	b.BadChannels, err = ReadBadChannels(o.fsys, path.Join(o.artifactDir, o.badChannelsFile))
	if err != nil {
		return nil, fmt.Errorf("error reading bad channels: %w", err)
	}
	b.BadSegments, err = ReadBadSegments(o.fsys, path.Join(o.artifactDir, o.badSegmentsFile))
	if err != nil {
		return nil, fmt.Errorf("error reading bad segments: %w", err)
	}

	bl := &blockLoader{options: o, block: b}

	c, period, err := bl.readChannel(1)
	if err != nil {
		return nil, err
	}
	b.Rate = float64(period) * 1e-4

	if c, err = bl.prepare(1, c); err != nil {
		return nil, err
	}
	b.Data = NewArray(math.NaN(), append([]int{ChannelCount}, c.Shape...)...)
	if bl.include(1) {
		if err := bl.store(1, c); err != nil {
			return nil, err
		}
	}

	for n := 2; n <= ChannelCount; n++ {
		if !bl.include(n) {
			o.logger.Debug("Skipping bad channel", "channel", n)
			continue
		}

		c, _, err := bl.readChannel(n)
		if err != nil {
			return nil, err
		}
		if c, err = bl.prepare(n, c); err != nil {
			return nil, err
		}
		if err := bl.store(n, c); err != nil {
			return nil, err
		}
	}

	o.logger.Info("Read block",
		"basedir", basedir, "subdir", o.subdir, "rate", b.Rate, "shape", b.Data.Shape,
		"badChannels", len(b.BadChannels), "badSegments", len(b.BadSegments))

	return b, nil
}

type blockLoader struct {
	options
	block *Block
}

// include reports whether channel n is stored in the block.
func (bl *blockLoader) include(n int) bool {
	return !bl.replace || !slices.Contains(bl.block.BadChannels, n)
}

// readChannel reads and squeezes channel n. The file is closed before it returns.
func (bl *blockLoader) readChannel(n int) (c Array, period int, err error) {
	name := path.Join(bl.subdir, ChannelFileName(n))
	bl.logger.Debug("Reading channel", "channel", n, "file", name)

	cf, err := bl.opener(bl.fsys, name)
	if err != nil {
		return Array{}, 0, fmt.Errorf("error reading channel %d: %w", n, err)
	}
	defer func() {
		if cerr := cf.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing channel %d: %w", n, cerr)
		}
	}()

	c, err = cf.ReadAll()
	if err != nil {
		return Array{}, 0, fmt.Errorf("error reading channel %d: %w", n, err)
	}

	c = c.Squeeze()
	for i, v := range c.Data {
		c.Data[i] = bl.dtype.Convert(v)
	}

	return c, cf.SamplePeriod(), nil
}

// prepare masks bad segments and applies the transform to channel n.
func (bl *blockLoader) prepare(n int, c Array) (Array, error) {
	if bl.replace {
		c = MaskSegments(c, bl.block.Rate, bl.block.BadSegments, math.NaN())
	}
	if bl.transform != nil {
		var err error
		if c, err = bl.transform(c); err != nil {
			return Array{}, fmt.Errorf("error transforming channel %d: %w", n, err)
		}
	}
	return c, nil
}

// store copies channel n into its slot.
func (bl *blockLoader) store(n int, c Array) error {
	slot := bl.block.Data.At(n - 1)
	if !slices.Equal(slot.Shape, c.Shape) || len(slot.Data) != len(c.Data) {
		return fmt.Errorf("%w: channel %d has shape %v, expected %v", ErrShapeMismatch, n, c.Shape, slot.Shape)
	}

	for i, v := range c.Data {
		slot.Data[i] = bl.dtype.Convert(v)
	}
	return nil
}
