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
	"io"
	"io/fs"
	"log/slog"
)

// Defaults for the block directory layout.
const (
	DefaultSubdir          = "ecogDS"
	DefaultArtifactDir     = "Artifacts"
	DefaultBadChannelsFile = "badChannels.txt"
	DefaultBadSegmentsFile = "badTimeSegments.mat"
)

type options struct {
	subdir          string
	transform       Transform
	dtype           DType
	replace         bool
	artifactDir     string
	badChannelsFile string
	badSegmentsFile string
	fsys            fs.FS
	opener          Opener
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		subdir:          DefaultSubdir,
		dtype:           Float32,
		replace:         true,
		artifactDir:     DefaultArtifactDir,
		badChannelsFile: DefaultBadChannelsFile,
		badSegmentsFile: DefaultBadSegmentsFile,
		opener:          OpenHTK,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures ReadBlock.
type Option func(*options)

// WithSubdir sets the subdirectory holding the channel files, e.g. "ecog400"
// for raw data instead of the downsampled "ecogDS".
func WithSubdir(subdir string) Option {
	return func(o *options) {
		o.subdir = subdir
	}
}

// WithTransform sets a transform applied to each channel after masking.
func WithTransform(fn Transform) Option {
	return func(o *options) {
		o.transform = fn
	}
}

// WithDType sets the precision samples are stored at.
func WithDType(dtype DType) Option {
	return func(o *options) {
		o.dtype = dtype
	}
}

// WithReplace enables or disables bad channel exclusion and bad segment masking.
func WithReplace(replace bool) Option {
	return func(o *options) {
		o.replace = replace
	}
}

// WithArtifactDir sets the subdirectory holding the bad channel and bad segment files.
func WithArtifactDir(dir string) Option {
	return func(o *options) {
		o.artifactDir = dir
	}
}

// WithBadChannelsFile sets the name of the bad channel file.
func WithBadChannelsFile(name string) Option {
	return func(o *options) {
		o.badChannelsFile = name
	}
}

// WithBadSegmentsFile sets the name of the bad segment file. The extension
// selects the format.
func WithBadSegmentsFile(name string) Option {
	return func(o *options) {
		o.badSegmentsFile = name
	}
}

// WithFS reads the block from fsys instead of the base directory on disk.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithOpener replaces the HTK channel file reader.
func WithOpener(opener Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithLogger sets the logger used for progress records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
