// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slice holds generic helpers the standard [slices] package lacks.
package slice

// Filter returns the elements of input that satisfy keep, in order.
// A nil input yields nil; a non-nil input with no match yields an empty slice.
func Filter[T any](input []T, keep func(T) bool) []T {
	if input == nil {
		return nil
	}

	result := make([]T, 0, len(input)/2)
	for _, item := range input {
		if keep(item) {
			result = append(result, item)
		}
	}
	return result
}
