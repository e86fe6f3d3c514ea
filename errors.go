// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecog

import "errors"

var (
	ErrNotHTK            = errors.New("ecog: not an HTK file")
	ErrInvalidFile       = errors.New("ecog: invalid file structure")
	ErrUnsupportedFormat = errors.New("ecog: unsupported format")
	ErrMissingVariable   = errors.New("ecog: missing variable")
	ErrMalformedSegments = errors.New("ecog: malformed bad segments")
	ErrUnpairedEvent     = errors.New("ecog: unpaired bad segment event")
	ErrShapeMismatch     = errors.New("ecog: channel shape mismatch")
)
