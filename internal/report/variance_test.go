package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdash/internal/core"
)

func bucket(kind core.Kind, year, month int, cats ...core.CategoryTotal) core.PeriodBucket {
	b := core.PeriodBucket{Kind: kind, Year: year, Month: month, Categories: cats}
	for _, c := range cats {
		b.Total = b.Total.Add(c.Total)
	}
	return b
}

func cat(name, total string) core.CategoryTotal {
	return core.CategoryTotal{Name: name, Total: dec(total)}
}

func TestCompareBudget(t *testing.T) {
	actual := []core.PeriodBucket{
		bucket(core.Expense, 2024, 3, cat("Materials", "120"), cat("Labor", "95")),
		bucket(core.Income, 2024, 3, cat("Sales", "50")),
	}
	budget := []core.PeriodBucket{
		bucket(core.Expense, 2024, 3, cat("Materials", "100"), cat("Permits", "30"), cat("Labor", "100")),
	}

	rows, err := CompareBudget(actual, budget, dec("10"))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	materials := rows[0]
	assert.Equal(t, "Materials", materials.Category)
	assert.True(t, materials.Difference.Equal(dec("20")))
	assert.True(t, materials.HasPct)
	assert.True(t, materials.DifferencePct.Equal(dec("20")))
	assert.True(t, materials.Flagged)

	labor := rows[1]
	assert.Equal(t, "Labor", labor.Category)
	assert.True(t, labor.DifferencePct.Equal(dec("-5")))
	assert.False(t, labor.Flagged)

	permits := rows[2]
	assert.Equal(t, "Permits", permits.Category)
	assert.True(t, permits.Actual.IsZero())
	assert.True(t, permits.DifferencePct.Equal(dec("-100")))
	assert.True(t, permits.Flagged)

	sales := rows[3]
	assert.Equal(t, core.Income, sales.Kind)
	assert.False(t, sales.HasPct)
	assert.True(t, sales.Flagged, "actual against zero budget is flagged")
}

func TestCompareBudgetOrdersPeriods(t *testing.T) {
	budget := []core.PeriodBucket{
		bucket(core.Income, 2024, 1, cat("Sales", "1")),
		bucket(core.Expense, 2024, 2, cat("Labor", "1")),
		bucket(core.Expense, 2023, 12, cat("Labor", "1")),
	}
	rows, err := CompareBudget(nil, budget, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{2023, 2024, 2024}, []int{rows[0].Year, rows[1].Year, rows[2].Year})
	assert.Equal(t, core.Income, rows[2].Kind)
}

func TestCompareBudgetNegativeThreshold(t *testing.T) {
	_, err := CompareBudget(nil, nil, dec("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
