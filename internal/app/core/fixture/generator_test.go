package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := New(42).Requests(1, 50)
	b := New(42).Requests(1, 50)
	require.Len(t, a, 50)
	for i := range a {
		assert.Equal(t, a[i].Kind, b[i].Kind)
		assert.True(t, a[i].Amount.Equal(b[i].Amount))
		assert.Equal(t, a[i].Description, b[i].Description)
	}

	c := New(43).Requests(1, 50)
	same := true
	for i := range a {
		if !a[i].Amount.Equal(c[i].Amount) {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds should diverge")
}

func TestGeneratorProducesValidRequests(t *testing.T) {
	g := New(7)
	credits := 0
	for _, req := range g.Requests(9, 500) {
		require.NoError(t, req.Validate())
		assert.Equal(t, int64(9), req.AccountID)
		if req.Kind == domain.EntryKindCredit {
			credits++
			assert.Equal(t, "Income", req.Category)
		}
	}
	assert.Greater(t, credits, 0)
	assert.Less(t, credits, 250)
}
