// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"context"
	"net/http"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/pkg/pagination"
)

// LeadQuery selects a page of leads.
type LeadQuery struct {
	pagination.Params
	crm.LeadFilter
}

// LeadPage is one page of GET /leads.
type LeadPage struct {
	Leads []crm.Lead
	Meta  pagination.Meta
}

// ListLeads returns a page of leads matching query.
func (client *Client) ListLeads(ctx context.Context, query LeadQuery) (*LeadPage, error) {
	values := query.Params.Values()
	if query.Status != "" {
		values.Set("status", string(query.Status))
	}
	if query.AssignedTo != "" {
		values.Set("assigned_to", query.AssignedTo)
	}

	var response struct {
		Data []crm.Lead      `json:"data"`
		Meta pagination.Meta `json:"meta"`
	}
	if err := client.do(ctx, request{method: http.MethodGet, path: "/leads", query: values}, &response); err != nil {
		return nil, err
	}
	return &LeadPage{Leads: response.Data, Meta: response.Meta}, nil
}

// GetLead fetches a single lead.
func (client *Client) GetLead(ctx context.Context, id string) (*crm.Lead, error) {
	var response envelope[crm.Lead]
	if err := client.do(ctx, request{method: http.MethodGet, path: "/leads/" + id}, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// CreateLead validates input locally, then submits it.
func (client *Client) CreateLead(ctx context.Context, input crm.LeadInput) (*crm.Lead, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var response envelope[crm.Lead]
	if err := client.do(ctx, request{method: http.MethodPost, path: "/leads", body: input}, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// UpdateLead validates the present fields of patch, then applies it remotely.
func (client *Client) UpdateLead(ctx context.Context, id string, patch crm.LeadPatch) (*crm.Lead, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var response envelope[crm.Lead]
	if err := client.do(ctx, request{method: http.MethodPatch, path: "/leads/" + id, body: patch}, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// DeleteLead removes a lead.
func (client *Client) DeleteLead(ctx context.Context, id string) error {
	return client.do(ctx, request{method: http.MethodDelete, path: "/leads/" + id}, nil)
}

// DashboardStats fetches the aggregate figures shown on the dashboard.
func (client *Client) DashboardStats(ctx context.Context) (*crm.DashboardStats, error) {
	var response envelope[crm.DashboardStats]
	if err := client.do(ctx, request{method: http.MethodGet, path: "/dashboard/stats"}, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}
