// Package assignment holds the single shared assignment-fallback policy.
// Every counting, filtering and dashboard path must resolve effective
// ownership through Resolve; per-call-site reimplementation is forbidden.
package assignment

import (
	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
)

// Category selects which client assignment slot applies.
type Category string

const (
	CategoryLtdAccounts    Category = "accounts-ltd"
	CategoryNonLtdAccounts Category = "accounts-non-ltd"
	CategoryVAT            Category = "vat"
	CategoryGeneral        Category = "general"
)

// Resolve returns the effective owning user for a client and category.
// First non-nil wins: assignment on the active workflow record, then the
// category slot on the client, then the client's general assignment.
// Returns nil when unassigned.
func Resolve(category Category, client *clientdomain.Client, workflowAssignee *snowflake.ID) *snowflake.ID {
	if workflowAssignee != nil && *workflowAssignee != 0 {
		return workflowAssignee
	}
	if client == nil {
		return nil
	}

	var slot *snowflake.ID
	switch category {
	case CategoryLtdAccounts:
		slot = client.LtdAssignedUserID
	case CategoryNonLtdAccounts:
		slot = client.NonLtdAssignedUserID
	case CategoryVAT:
		slot = client.VATAssignedUserID
	}
	if slot != nil && *slot != 0 {
		return slot
	}

	if client.AssignedUserID != nil && *client.AssignedUserID != 0 {
		return client.AssignedUserID
	}
	return nil
}
