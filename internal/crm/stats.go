// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package crm

import (
	"math"
	"time"
)

// DashboardStats is the payload of the "dashboard_stats" realtime feed and of
// GET /dashboard/stats.
type DashboardStats struct {
	TotalLeads     int                `json:"total_leads"`
	NewToday       int                `json:"new_today"`
	Converted      int                `json:"converted"`
	Rejected       int                `json:"rejected"`
	ConversionRate float64            `json:"conversion_rate"`
	ByStatus       map[LeadStatus]int `json:"by_status"`
	ByCardType     map[CardType]int   `json:"by_card_type"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ComputeStats aggregates leads into dashboard figures.
//
// "Today" is the calendar day of now in now's location. ConversionRate is the
// converted share of all leads as a percentage rounded to one decimal.
func ComputeStats(leads []Lead, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalLeads: len(leads),
		ByStatus:   make(map[LeadStatus]int, len(LeadStatuses)),
		ByCardType: make(map[CardType]int, len(CardTypes)),
		UpdatedAt:  now,
	}

	year, month, day := now.Date()
	for _, lead := range leads {
		stats.ByStatus[lead.Status]++
		stats.ByCardType[lead.CardType]++

		createdYear, createdMonth, createdDay := lead.CreatedAt.In(now.Location()).Date()
		if createdYear == year && createdMonth == month && createdDay == day {
			stats.NewToday++
		}
	}

	stats.Converted = stats.ByStatus[LeadStatusConverted]
	stats.Rejected = stats.ByStatus[LeadStatusRejected]
	if stats.TotalLeads > 0 {
		rate := float64(stats.Converted) / float64(stats.TotalLeads) * 100
		stats.ConversionRate = math.Round(rate*10) / 10
	}

	return stats
}

// RecentLeadsLimit is the number of leads carried by the "recent_leads" feed.
const RecentLeadsLimit = 10
