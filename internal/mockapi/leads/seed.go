// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package leads

import (
	"context"
	"fmt"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
)

var demoLeads = []crm.LeadInput{
	{FullName: "Tran Thi Mai", Email: "mai.tran@example.com", Phone: "+84 903 111 222", CardType: crm.CardClassic},
	{FullName: "Le Van Hung", Email: "hung.le@example.com", Phone: "+84 904 333 444", CardType: crm.CardGold},
	{FullName: "Pham Minh Chau", Email: "chau.pham@example.com", Phone: "+84 905 555 666", CardType: crm.CardPlatinum},
	{FullName: "Vo Thanh Son", Email: "son.vo@example.com", Phone: "+84 906 777 888", CardType: crm.CardSignature},
	{FullName: "Dang Ngoc Anh", Email: "anh.dang@example.com", Phone: "+84 907 999 000", CardType: crm.CardInfinite},
	{FullName: "Bui Quang Huy", Email: "huy.bui@example.com", Phone: "+84 908 121 343", CardType: crm.CardGold},
}

// SeedDemo creates sample leads, spread round-robin over assignees.
//
// Leads whose email already exists are skipped, so seeding a persistent
// store twice is harmless. Returns the number of leads created.
func SeedDemo(ctx context.Context, service *Service, assignees []Actor) (int, error) {
	if len(assignees) == 0 {
		return 0, nil
	}

	created := 0
	for i, input := range demoLeads {
		actor := assignees[i%len(assignees)]
		if _, err := service.Create(ctx, actor, input); err != nil {
			if appError := apperr.As(err); appError != nil && appError.Code == "CONFLICT" {
				continue
			}
			return created, fmt.Errorf("seed lead %s: %w", input.Email, err)
		}
		created++
	}
	return created, nil
}
