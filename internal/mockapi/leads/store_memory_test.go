// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/mockapi/leads"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func storedLead(id, email string, status crm.LeadStatus, age time.Duration) *crm.Lead {
	created := baseTime.Add(-age)
	return &crm.Lead{
		ID:         id,
		FullName:   "Lead " + id,
		Email:      email,
		Phone:      "0912345678",
		CardType:   crm.CardClassic,
		Status:     status,
		AssignedTo: "admin-lan",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

/*
TestMemoryRepository_ListFiltersAndPages covers ordering, filters and offsets past the end.
*/
func TestMemoryRepository_ListFiltersAndPages(t *testing.T) {
	repository := leads.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, storedLead("1", "one@x.test", crm.LeadStatusNew, 3*time.Hour)))
	require.NoError(t, repository.Create(ctx, storedLead("2", "two@x.test", crm.LeadStatusConverted, 2*time.Hour)))
	require.NoError(t, repository.Create(ctx, storedLead("3", "three@x.test", crm.LeadStatusNew, time.Hour)))

	page, total, err := repository.List(ctx, crm.LeadFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "3", page[0].ID)
	assert.Equal(t, "2", page[1].ID)

	page, total, err = repository.List(ctx, crm.LeadFilter{Status: crm.LeadStatusNew}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "3", page[0].ID)

	page, total, err = repository.List(ctx, crm.LeadFilter{}, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestMemoryRepository_UniqueEmail(t *testing.T) {
	repository := leads.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, storedLead("1", "one@x.test", crm.LeadStatusNew, 0)))
	require.NoError(t, repository.Create(ctx, storedLead("2", "two@x.test", crm.LeadStatusNew, 0)))

	err := repository.Create(ctx, storedLead("3", "ONE@x.test", crm.LeadStatusNew, 0))
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	renamed := storedLead("2", "one@x.test", crm.LeadStatusNew, 0)
	err = repository.Update(ctx, renamed)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repository := leads.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repository.Create(ctx, storedLead("1", "one@x.test", crm.LeadStatusNew, 0)))

	found, err := repository.FindByID(ctx, "1")
	require.NoError(t, err)
	found.Status = crm.LeadStatusRejected

	again, err := repository.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, crm.LeadStatusNew, again.Status)
}

func TestMemoryRepository_MissingLead(t *testing.T) {
	repository := leads.NewMemoryRepository()
	ctx := context.Background()

	_, err := repository.FindByID(ctx, "nope")
	assert.EqualError(t, err, "Lead not found")

	assert.EqualError(t, repository.Update(ctx, storedLead("nope", "n@x.test", crm.LeadStatusNew, 0)), "Lead not found")
	assert.EqualError(t, repository.Delete(ctx, "nope"), "Lead not found")
}
