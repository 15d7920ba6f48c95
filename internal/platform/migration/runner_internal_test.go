// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToPgx5DSN(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"postgres://u:p@localhost:5432/crm", "pgx5://u:p@localhost:5432/crm"},
		{"postgresql://localhost/crm?sslmode=disable", "pgx5://localhost/crm?sslmode=disable"},
		{"pgx5://localhost/crm", "pgx5://localhost/crm"},
		{"host=localhost dbname=crm", "host=localhost dbname=crm"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, convertToPgx5DSN(tt.input))
	}
}
