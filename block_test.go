// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecog_test

import (
	"bytes"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/ecog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSamples = 10

// writeBlock writes a block with testSamples vectors of vecLen elements per
// channel at a rate of 1, where sample i of channel n is n*1000+i. Bad
// channels are 7 and 12, and the bad segment covers 2s to 5s.
func writeBlock(t *testing.T, vecLen int) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ecog.DefaultSubdir), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ecog.DefaultArtifactDir), 0o755))

	for n := 1; n <= ecog.ChannelCount; n++ {
		f, err := os.Create(filepath.Join(dir, ecog.DefaultSubdir, ecog.ChannelFileName(n)))
		require.NoError(t, err)

		hw, err := ecog.Create(f, ecog.Header{SamplePeriod: 10000, SampleSize: 4 * vecLen, ParmKind: ecog.User})
		require.NoError(t, err)
		for i := 0; i < testSamples; i++ {
			vec := make([]float64, vecLen)
			for j := range vec {
				vec[j] = float64(n*1000 + i)
			}
			require.NoError(t, hw.WriteSamples(vec))
		}
		require.NoError(t, hw.Close())
		require.NoError(t, f.Close())
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, ecog.DefaultArtifactDir, ecog.DefaultBadChannelsFile), []byte("7 12\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, ecog.WriteMAT(&buf, true, ecog.MATDouble{Name: "badTimeSegments", Rows: 1, Cols: 2, Data: []float64{2, 5}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ecog.DefaultArtifactDir, ecog.DefaultBadSegmentsFile), buf.Bytes(), 0o644))

	return dir
}

// countingOpener records every channel file opened and closed.
type countingOpener struct {
	opened map[string]int
	closed int
}

func (co *countingOpener) open(fsys fs.FS, name string) (ecog.ChannelFile, error) {
	if co.opened == nil {
		co.opened = make(map[string]int)
	}
	co.opened[name]++

	cf, err := ecog.OpenHTK(fsys, name)
	if err != nil {
		return nil, err
	}
	return &countingFile{ChannelFile: cf, co: co}, nil
}

type countingFile struct {
	ecog.ChannelFile
	co *countingOpener
}

func (cf *countingFile) Close() error {
	cf.co.closed++
	return cf.ChannelFile.Close()
}

func TestReadBlock(t *testing.T) {
	dir := writeBlock(t, 1)

	var co countingOpener
	b, err := ecog.ReadBlock(dir, ecog.WithOpener(co.open))
	require.NoError(t, err)

	assert.Equal(t, dir, b.Basedir)
	assert.Equal(t, ecog.DefaultSubdir, b.Subdir)
	assert.InDelta(t, 1.0, b.Rate, 1e-9)
	assert.Equal(t, []int{7, 12}, b.BadChannels)
	assert.Equal(t, ecog.Segments{{Start: 2, End: 5}}, b.BadSegments)
	require.Equal(t, []int{ecog.ChannelCount, testSamples}, b.Data.Shape)
	assert.Contains(t, b.String(), "shape=[256 10]")

	for n := 1; n <= ecog.ChannelCount; n++ {
		c := b.Channel(n)
		for i, v := range c.Data {
			if n == 7 || n == 12 || (i >= 2 && i < 5) {
				require.True(t, math.IsNaN(v), "channel %d sample %d", n, i)
			} else {
				require.Equal(t, float64(n*1000+i), v, "channel %d sample %d", n, i)
			}
		}
	}

	// Excluded channels are never opened, every opened file is closed.
	assert.NotContains(t, co.opened, "ecogDS/Wav17.htk")
	assert.NotContains(t, co.opened, "ecogDS/Wav112.htk")
	assert.Len(t, co.opened, ecog.ChannelCount-2)
	assert.Equal(t, ecog.ChannelCount-2, co.closed)
}

func TestReadBlockNoReplace(t *testing.T) {
	dir := writeBlock(t, 1)

	var co countingOpener
	b, err := ecog.ReadBlock(dir, ecog.WithReplace(false), ecog.WithDType(ecog.Float64), ecog.WithOpener(co.open))
	require.NoError(t, err)

	require.Equal(t, []int{ecog.ChannelCount, testSamples}, b.Data.Shape)
	for _, v := range b.Data.Data {
		require.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 7002.0, b.Channel(7).Data[2])
	assert.Len(t, co.opened, ecog.ChannelCount)
}

func TestReadBlockExcludedFirstChannel(t *testing.T) {
	dir := writeBlock(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ecog.DefaultArtifactDir, "bad.txt"), []byte("1\n"), 0o644))

	var co countingOpener
	b, err := ecog.ReadBlock(dir, ecog.WithBadChannelsFile("bad.txt"), ecog.WithOpener(co.open))
	require.NoError(t, err)

	// Channel 1 is still read for the rate and shape, but not stored.
	assert.Equal(t, 1, co.opened["ecogDS/Wav11.htk"])
	assert.InDelta(t, 1.0, b.Rate, 1e-9)
	for _, v := range b.Channel(1).Data {
		require.True(t, math.IsNaN(v))
	}
	assert.Equal(t, 2000.0, b.Channel(2).Data[0])
}

func TestReadBlockMultiDimensional(t *testing.T) {
	dir := writeBlock(t, 3)

	b, err := ecog.ReadBlock(dir)
	require.NoError(t, err)

	require.Equal(t, []int{ecog.ChannelCount, testSamples, 3}, b.Data.Shape)
	c := b.Channel(256)
	assert.Equal(t, []float64{256000, 256000, 256000}, c.At(0).Data)
	for _, v := range c.At(3).Data {
		assert.True(t, math.IsNaN(v))
	}
}

func TestReadBlockTransform(t *testing.T) {
	dir := writeBlock(t, 1)

	// Keep every other sample.
	decimate := func(c ecog.Array) (ecog.Array, error) {
		out := ecog.NewArray(0, (c.Len()+1)/2)
		for i := range out.Data {
			out.Data[i] = c.Data[2*i]
		}
		return out, nil
	}

	b, err := ecog.ReadBlock(dir, ecog.WithTransform(decimate))
	require.NoError(t, err)

	require.Equal(t, []int{ecog.ChannelCount, testSamples / 2}, b.Data.Shape)
	// The rate is reported before the transform.
	assert.InDelta(t, 1.0, b.Rate, 1e-9)

	c := b.Channel(3)
	assert.Equal(t, 3000.0, c.Data[0])
	assert.True(t, math.IsNaN(c.Data[1]))
	assert.True(t, math.IsNaN(c.Data[2]))
	assert.Equal(t, 3006.0, c.Data[3])
}

func TestReadBlockTransformShapeMismatch(t *testing.T) {
	dir := writeBlock(t, 1)

	calls := 0
	uneven := func(c ecog.Array) (ecog.Array, error) {
		calls++
		if calls == 3 {
			return ecog.NewArray(0, c.Len()-1), nil
		}
		return c, nil
	}

	_, err := ecog.ReadBlock(dir, ecog.WithTransform(uneven))
	require.ErrorIs(t, err, ecog.ErrShapeMismatch)
}

func TestReadBlockTransformError(t *testing.T) {
	dir := writeBlock(t, 1)

	errBoom := errors.New("boom")
	var co countingOpener
	_, err := ecog.ReadBlock(dir, ecog.WithOpener(co.open), ecog.WithTransform(func(c ecog.Array) (ecog.Array, error) {
		return ecog.Array{}, errBoom
	}))
	require.ErrorIs(t, err, errBoom)

	// The channel file was closed before the transform failed.
	assert.Len(t, co.opened, 1)
	assert.Equal(t, 1, co.closed)
}

func TestReadBlockTextSegments(t *testing.T) {
	dir := writeBlock(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ecog.DefaultArtifactDir, "badTimeSegments.lab"),
		[]byte("0 700000000 b\n0 900000000 e\n"), 0o644))

	b, err := ecog.ReadBlock(dir, ecog.WithBadSegmentsFile("badTimeSegments.lab"))
	require.NoError(t, err)

	c := b.Channel(1)
	assert.Equal(t, 1006.0, c.Data[6])
	assert.True(t, math.IsNaN(c.Data[7]))
	assert.True(t, math.IsNaN(c.Data[8]))
	assert.Equal(t, 1009.0, c.Data[9])
}

func TestReadBlockErrors(t *testing.T) {
	dir := writeBlock(t, 1)

	_, err := ecog.ReadBlock(dir, ecog.WithArtifactDir("missing"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = ecog.ReadBlock(dir, ecog.WithSubdir("ecog400"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, os.Remove(filepath.Join(dir, ecog.DefaultSubdir, ecog.ChannelFileName(100))))
	_, err = ecog.ReadBlock(dir)
	require.ErrorIs(t, err, fs.ErrNotExist)
}
