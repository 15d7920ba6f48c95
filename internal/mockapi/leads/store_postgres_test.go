// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/mockapi/leads"
	"github.com/taibuivan/leadcrm/internal/platform/migration"
	"github.com/taibuivan/leadcrm/internal/platform/postgres"
	"github.com/taibuivan/leadcrm/pkg/uuidv7"
)

/*
TestPostgresRepository runs against a real database named by
LEADCRM_TEST_DATABASE_URL and is skipped otherwise.
*/
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("LEADCRM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEADCRM_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, migration.RunUp(dsn, leads.Migrations, leads.MigrationsDir, logger))

	pool, err := postgres.NewPool(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE leads`)
	require.NoError(t, err)

	repository := leads.NewPostgresRepository(pool)

	first := storedLead(uuidv7.New(), "pg-one@x.test", crm.LeadStatusNew, 0)
	second := storedLead(uuidv7.New(), "pg-two@x.test", crm.LeadStatusConverted, 0)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repository.Create(ctx, first))
	require.NoError(t, repository.Create(ctx, second))

	// ── Unique email ──
	duplicate := storedLead(uuidv7.New(), "pg-one@x.test", crm.LeadStatusNew, 0)
	assert.EqualError(t, repository.Create(ctx, duplicate), "Lead already exists")

	// ── List ──
	page, total, err := repository.List(ctx, crm.LeadFilter{Status: crm.LeadStatusConverted}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	page, total, err = repository.List(ctx, crm.LeadFilter{}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, page)

	// ── Update & Find ──
	first.Status = crm.LeadStatusQualified
	require.NoError(t, repository.Update(ctx, first))

	found, err := repository.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.LeadStatusQualified, found.Status)

	// ── Recent & Delete ──
	recent, err := repository.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	require.NoError(t, repository.Delete(ctx, second.ID))
	assert.EqualError(t, repository.Delete(ctx, second.ID), "Lead not found")

	_, err = repository.FindByID(ctx, second.ID)
	assert.EqualError(t, err, "Lead not found")
}
