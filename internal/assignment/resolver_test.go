package assignment

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/stretchr/testify/assert"
)

func idPtr(v int64) *snowflake.ID {
	id := snowflake.ID(v)
	return &id
}

func TestResolve(t *testing.T) {
	client := &clientdomain.Client{
		AssignedUserID:    idPtr(1),
		LtdAssignedUserID: idPtr(2),
		VATAssignedUserID: idPtr(3),
	}

	tests := []struct {
		name             string
		category         Category
		client           *clientdomain.Client
		workflowAssignee *snowflake.ID
		want             *snowflake.ID
	}{
		{
			name:             "workflow assignment wins",
			category:         CategoryLtdAccounts,
			client:           client,
			workflowAssignee: idPtr(9),
			want:             idPtr(9),
		},
		{
			name:     "category slot beats general",
			category: CategoryLtdAccounts,
			client:   client,
			want:     idPtr(2),
		},
		{
			name:     "vat slot",
			category: CategoryVAT,
			client:   client,
			want:     idPtr(3),
		},
		{
			name:     "missing category slot falls back to general",
			category: CategoryNonLtdAccounts,
			client:   client,
			want:     idPtr(1),
		},
		{
			name:     "general category skips slots",
			category: CategoryGeneral,
			client:   client,
			want:     idPtr(1),
		},
		{
			name:     "unassigned everywhere",
			category: CategoryVAT,
			client:   &clientdomain.Client{},
			want:     nil,
		},
		{
			name:             "zero workflow assignee is unset",
			category:         CategoryVAT,
			client:           &clientdomain.Client{},
			workflowAssignee: idPtr(0),
			want:             nil,
		},
		{
			name:     "nil client",
			category: CategoryGeneral,
			client:   nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.category, tt.client, tt.workflowAssignee)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}
