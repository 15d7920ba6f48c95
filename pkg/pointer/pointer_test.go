// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/leadcrm/pkg/pointer"
)

func TestToAndFallback(t *testing.T) {
	name := pointer.To("Ana Lima")
	assert.Equal(t, "Ana Lima", *name)
	assert.Equal(t, "Ana Lima", pointer.Fallback(name, "unknown"))

	var missing *string
	assert.Equal(t, "unknown", pointer.Fallback(missing, "unknown"))
}
