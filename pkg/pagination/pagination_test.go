// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/leadcrm/pkg/pagination"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pagination.Params
	}{
		{"defaults", "", pagination.Params{Page: 1, Limit: 20}},
		{"explicit", "?page=3&limit=50", pagination.Params{Page: 3, Limit: 50}},
		{"negative_page", "?page=-2", pagination.Params{Page: 1, Limit: 20}},
		{"limit_over_max", "?limit=500", pagination.Params{Page: 1, Limit: 20}},
		{"garbage", "?page=x&limit=y", pagination.Params{Page: 1, Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/leads"+tt.query, nil)
			assert.Equal(t, tt.want, pagination.FromRequest(request))
		})
	}
}

/*
TestParams_ValuesRoundTrip checks the client encoding is what the server parses.
*/
func TestParams_ValuesRoundTrip(t *testing.T) {
	params := pagination.Params{Page: 2, Limit: 10}
	request := httptest.NewRequest("GET", "/leads?"+params.Values().Encode(), nil)

	assert.Equal(t, params, pagination.FromRequest(request))
	assert.Empty(t, pagination.Params{}.Values().Encode())
}

func TestMeta(t *testing.T) {
	meta := pagination.NewMeta(2, 10, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext())

	last := pagination.NewMeta(3, 10, 25)
	assert.False(t, last.HasNext())

	assert.Equal(t, 0, pagination.NewMeta(1, 0, 5).TotalPages)
	assert.Equal(t, 20, pagination.Params{Page: 3, Limit: 10}.Offset())
}
