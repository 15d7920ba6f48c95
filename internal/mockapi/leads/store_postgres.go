// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/dberr"
)

const leadColumns = `id, full_name, email, phone, card_type, status, assigned_to, notes, created_at, updated_at`

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed lead store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

/*
List returns a filtered and paginated list of leads.

Description: Uses COUNT(*) OVER() to return the total alongside the page.
*/
func (repository *PostgresRepository) List(ctx context.Context, filter crm.LeadFilter, limit, offset int) ([]crm.Lead, int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + leadColumns + `, COUNT(*) OVER() AS total FROM leads WHERE TRUE`)

	args := []any{}
	argID := 1

	if filter.Status != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	}

	if filter.AssignedTo != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND assigned_to = $%d", argID))
		args = append(args, filter.AssignedTo)
		argID++
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := repository.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "Lead", "list_leads")
	}
	defer rows.Close()

	leads := []crm.Lead{}
	total := 0
	for rows.Next() {
		var lead crm.Lead
		if err := rows.Scan(
			&lead.ID, &lead.FullName, &lead.Email, &lead.Phone, &lead.CardType, &lead.Status,
			&lead.AssignedTo, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt, &total,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "Lead", "scan_lead")
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "Lead", "list_leads")
	}

	// Past the last page the window count is unavailable.
	if len(leads) == 0 && offset > 0 {
		if err := repository.countInto(ctx, filter, &total); err != nil {
			return nil, 0, err
		}
	}

	return leads, total, nil
}

func (repository *PostgresRepository) countInto(ctx context.Context, filter crm.LeadFilter, total *int) error {
	const query = `
		SELECT COUNT(*) FROM leads
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR assigned_to = $2)`

	if err := repository.db.QueryRow(ctx, query, string(filter.Status), filter.AssignedTo).Scan(total); err != nil {
		return dberr.Wrap(err, "Lead", "count_leads")
	}
	return nil
}

// All implements [Repository].
func (repository *PostgresRepository) All(ctx context.Context) ([]crm.Lead, error) {
	rows, err := repository.db.Query(ctx, `SELECT `+leadColumns+` FROM leads`)
	if err != nil {
		return nil, dberr.Wrap(err, "Lead", "all_leads")
	}
	return collectLeads(rows)
}

// Recent implements [Repository].
func (repository *PostgresRepository) Recent(ctx context.Context, limit int) ([]crm.Lead, error) {
	rows, err := repository.db.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "Lead", "recent_leads")
	}
	return collectLeads(rows)
}

// FindByID implements [Repository].
func (repository *PostgresRepository) FindByID(ctx context.Context, id string) (*crm.Lead, error) {
	row := repository.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if err != nil {
		return nil, dberr.Wrap(err, "Lead", "get_lead")
	}
	return lead, nil
}

// Create implements [Repository].
func (repository *PostgresRepository) Create(ctx context.Context, lead *crm.Lead) error {
	const query = `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := repository.db.Exec(ctx, query,
		lead.ID, lead.FullName, lead.Email, lead.Phone, lead.CardType, lead.Status,
		lead.AssignedTo, lead.Notes, lead.CreatedAt, lead.UpdatedAt,
	)
	return dberr.Wrap(err, "Lead", "create_lead")
}

// Update implements [Repository].
func (repository *PostgresRepository) Update(ctx context.Context, lead *crm.Lead) error {
	const query = `
		UPDATE leads SET
			full_name = $2, email = $3, phone = $4, card_type = $5, status = $6,
			assigned_to = $7, notes = $8, updated_at = $9
		WHERE id = $1`

	tag, err := repository.db.Exec(ctx, query,
		lead.ID, lead.FullName, lead.Email, lead.Phone, lead.CardType, lead.Status,
		lead.AssignedTo, lead.Notes, lead.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "Lead", "update_lead")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Lead")
	}
	return nil
}

// Delete implements [Repository].
func (repository *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := repository.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return dberr.Wrap(err, "Lead", "delete_lead")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Lead")
	}
	return nil
}

func scanLead(row pgx.Row) (*crm.Lead, error) {
	var lead crm.Lead
	err := row.Scan(
		&lead.ID, &lead.FullName, &lead.Email, &lead.Phone, &lead.CardType, &lead.Status,
		&lead.AssignedTo, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = lead.UpdatedAt.UTC()
	return &lead, nil
}

func collectLeads(rows pgx.Rows) ([]crm.Lead, error) {
	defer rows.Close()

	leads := []crm.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "Lead", "scan_leads")
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "Lead", "scan_leads")
	}
	return leads, nil
}
