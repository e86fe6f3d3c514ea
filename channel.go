// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package ecog

import "fmt"

// ChannelCount is the number of channels in a block.
const ChannelCount = 256

// bankSize is the number of channels per electrode bank.
const bankSize = 64

// ChannelBank returns the 1-based electrode bank of channel n, ceil(n/64).
func ChannelBank(n int) int {
	return (n + bankSize - 1) / bankSize
}

// ChannelOffset returns the 1-based position of channel n within its bank.
func ChannelOffset(n int) int {
	return (n-1)%bankSize + 1
}

// ChannelFileName returns the file name of channel n (1-based), where channel
// 1 is Wav11.htk and channel 256 is Wav464.htk.
func ChannelFileName(n int) string {
	return fmt.Sprintf("Wav%d%d.htk", ChannelBank(n), ChannelOffset(n))
}
