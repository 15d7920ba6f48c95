// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer builds and reads the optional fields of patch types.
package pointer

// To returns a pointer to a copy of v, for literals in patch structs.
func To[T any](v T) *T {
	return &v
}

// Fallback returns *p, or fallback when the field was not set.
func Fallback[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
