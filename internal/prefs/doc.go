// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs is a small SQLite-backed key-value store for user
// preferences such as the selected farm.
//
// Keys are NFC-normalised before use so that the same Hangul key typed on
// different keyboards maps to one row. Credential-like keys are refused.
//
// # Usage
//
//	store, err := prefs.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	_ = store.Set(ctx, prefs.KeyFarmName, "햇살농장")
//	name, ok, _ := store.Get(ctx, prefs.KeyFarmName)
package prefs
