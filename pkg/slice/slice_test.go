// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/leadcrm/pkg/slice"
)

func TestFilter(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }

	assert.Equal(t, []int{2, 4}, slice.Filter([]int{1, 2, 3, 4, 5}, even))
	assert.Equal(t, []int{}, slice.Filter([]int{1, 3}, even))
	assert.Nil(t, slice.Filter[int](nil, even))
}
