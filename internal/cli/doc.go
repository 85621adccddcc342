// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the farmassist command tree.
//
// # Commands
//
//   - farmassist / farmassist tui: terminal shell with the diary and helper panels
//   - farmassist ask: one question, printed answer (or --json transcript)
//   - farmassist chat: line-based conversation with input history
//   - farmassist serve: HTTP API for the mobile shell
//   - farmassist prefs: local preference store (userId, farmName, ...)
//   - farmassist config: show, init, get and set configuration values
//   - farmassist version
//
// # Exit Codes
//
// ExitCode maps command errors to process exit codes: 2 for usage
// errors, 3 for configuration errors (including a missing API key) and 5
// when a one-shot command got a notice instead of an answer.
//
// # Usage
//
//	func main() {
//		if err := cli.Execute(); err != nil {
//			os.Exit(cli.ExitCode(err))
//		}
//	}
package cli
