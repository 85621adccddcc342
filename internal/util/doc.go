// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the farmassist packages.
//
// # Key Functions
//
// Text:
//   - NormalizeInput: NFC-normalise and trim user input before it reaches a transcript
//   - IsBlank: whitespace-only check
//   - TruncateWidth: display-width aware truncation for Korean/CJK text
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	text := util.NormalizeInput(raw)
//	line := util.TruncateWidth(text, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
