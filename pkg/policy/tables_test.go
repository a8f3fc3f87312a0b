package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableAccessPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewTableAccessPolicy(ctx, DefaultTableAccessPolicy)
	require.NoError(t, err)

	t.Run("allows_by_default", func(t *testing.T) {
		t.Parallel()
		decision, err := p.Evaluate(ctx, []string{"dlv_dep_tran"}, nil, "CEO")
		require.NoError(t, err)
		require.Equal(t, "allow", decision)
	})

	t.Run("denies_listed_table", func(t *testing.T) {
		t.Parallel()
		decision, err := p.Evaluate(ctx, []string{"salaries", "branches"}, []string{"salaries"}, "CEO")
		require.NoError(t, err)
		require.Equal(t, "deny", decision)
	})

	t.Run("rejects_invalid_module", func(t *testing.T) {
		t.Parallel()
		_, err := NewTableAccessPolicy(ctx, "package broken {")
		require.Error(t, err)
	})
}
