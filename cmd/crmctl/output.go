// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"text/tabwriter"

	"github.com/taibuivan/leadcrm/internal/crm"
)

func printLeads(env *environment, leads []crm.Lead) {
	if len(leads) == 0 {
		env.printer.Fprintln(env.stdout, "No leads")
		return
	}

	table := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	env.printer.Fprintln(table, "ID\tNAME\tEMAIL\tCARD\tSTATUS\tCREATED")
	for _, lead := range leads {
		env.printer.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.ID, lead.FullName, lead.Email, lead.CardType, lead.Status,
			lead.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	_ = table.Flush()
}

// printStats writes the dashboard figures with locale-aware digit grouping.
func printStats(env *environment, stats crm.DashboardStats) {
	env.printer.Fprintf(env.stdout, "Total leads:     %d\n", stats.TotalLeads)
	env.printer.Fprintf(env.stdout, "New today:       %d\n", stats.NewToday)
	env.printer.Fprintf(env.stdout, "Converted:       %d (%.1f%%)\n", stats.Converted, stats.ConversionRate)
	env.printer.Fprintf(env.stdout, "Rejected:        %d\n", stats.Rejected)

	env.printer.Fprintln(env.stdout, "By status:")
	for _, status := range crm.LeadStatuses {
		env.printer.Fprintf(env.stdout, "  %-10s %d\n", status, stats.ByStatus[status])
	}
	env.printer.Fprintln(env.stdout, "By card:")
	for _, cardType := range crm.CardTypes {
		env.printer.Fprintf(env.stdout, "  %-10s %d\n", cardType, stats.ByCardType[cardType])
	}
}
