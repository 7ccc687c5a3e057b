package invoice

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWith(total, tax, pretax, rate string) *Record {
	rec := NewRecord("test.pdf")
	rec.TotalAmount = total
	rec.TaxAmount = tax
	rec.PretaxAmount = pretax
	rec.TaxRate = rate
	return rec
}

func TestReconcileDerivesFromTotalAndRate(t *testing.T) {
	rec := recordWith("113.00", Unrecognized, Unrecognized, "13")
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "100.00", rec.PretaxAmount)
	assert.Equal(t, "13.00", rec.TaxAmount)
	assert.Equal(t, "113.00", rec.TotalAmount)
}

func TestReconcileDerivesFromPretaxAndRate(t *testing.T) {
	rec := recordWith(Unrecognized, Unrecognized, "200.00", "6")
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "12.00", rec.TaxAmount)
	assert.Equal(t, "212.00", rec.TotalAmount)
}

func TestReconcileDerivesTotalAndRateFromParts(t *testing.T) {
	rec := recordWith(Unrecognized, "6.00", "100.00", Unrecognized)
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "106.00", rec.TotalAmount)
	assert.Equal(t, "6", rec.TaxRate)
}

func TestReconcileDefaultsRateWhenImpliedIsOff(t *testing.T) {
	// 20/100 implies 20%, which is not near any valid rate.
	rec := recordWith(Unrecognized, "20.00", "100.00", Unrecognized)
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "6", rec.TaxRate)
	assert.Equal(t, "120.00", rec.TotalAmount)
}

func TestReconcileSortsMisassignedAmounts(t *testing.T) {
	// Extractor put the amounts in the wrong slots.
	rec := recordWith("6.00", "106.00", "100.00", Unrecognized)
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "6.00", rec.TaxAmount)
	assert.Equal(t, "100.00", rec.PretaxAmount)
	assert.Equal(t, "106.00", rec.TotalAmount)
}

func TestReconcileOverwritesInconsistentTotal(t *testing.T) {
	rec := recordWith("999.00", "13.00", "100.00", "13")
	ReconcileAmounts(rec, zerolog.Nop())

	// 999 disagrees with 100+13 by far more than the tolerance.
	assert.Equal(t, "113.00", rec.TotalAmount)
}

func TestReconcileKeepsTotalWithinTolerance(t *testing.T) {
	rec := recordWith("113.01", "13.00", "100.00", "13")
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, "113.01", rec.TotalAmount)
}

func TestReconcileOrderingInvariant(t *testing.T) {
	cases := []*Record{
		recordWith("113.00", "13.00", "100.00", "13"),
		recordWith("106.00", "100.00", "6.00", Unrecognized),
		recordWith("50.00", "950.00", "900.00", Unrecognized),
	}
	for _, rec := range cases {
		ReconcileAmounts(rec, zerolog.Nop())

		tax, ok := amountOf(rec.TaxAmount)
		require.True(t, ok)
		pretax, ok := amountOf(rec.PretaxAmount)
		require.True(t, ok)
		total, ok := amountOf(rec.TotalAmount)
		require.True(t, ok)

		assert.True(t, tax.LessThan(pretax), "tax < pretax: %s %s", tax, pretax)
		assert.True(t, pretax.LessThan(total), "pretax < total: %s %s", pretax, total)

		diff := pretax.Add(tax).Sub(total).Abs()
		assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.02")),
			"|pretax+tax-total| = %s", diff)
	}
}

func TestReconcileLeavesUndeterminableAlone(t *testing.T) {
	rec := recordWith(Unrecognized, Unrecognized, Unrecognized, Unrecognized)
	ReconcileAmounts(rec, zerolog.Nop())

	assert.Equal(t, Unrecognized, rec.TotalAmount)
	assert.Equal(t, Unrecognized, rec.TaxAmount)
	assert.Equal(t, Unrecognized, rec.PretaxAmount)
	assert.Equal(t, Unrecognized, rec.TaxRate)
}

func TestReconcileTreatsZeroAsAbsent(t *testing.T) {
	rec := recordWith("113.00", "0.00", Unrecognized, "13")
	ReconcileAmounts(rec, zerolog.Nop())

	// A zero tax amount behaves like a missing one and is recomputed.
	assert.Equal(t, "13.00", rec.TaxAmount)
	assert.Equal(t, "100.00", rec.PretaxAmount)
}

func TestReconcileWordsDerivesFromNumeric(t *testing.T) {
	rec := recordWith("113.00", Unrecognized, Unrecognized, Unrecognized)
	ReconcileWords(rec, zerolog.Nop())

	assert.Equal(t, "壹佰壹拾叁圆整", rec.TotalInWords)
}

func TestReconcileWordsDerivesNumericFromWords(t *testing.T) {
	rec := NewRecord("test.pdf")
	rec.TotalInWords = "壹仟贰佰叁拾肆圆伍角陆分"
	ReconcileWords(rec, zerolog.Nop())

	assert.Equal(t, "1234.56", rec.TotalAmount)
}

func TestReconcileWordsNumericWinsDisagreement(t *testing.T) {
	rec := recordWith("113.00", Unrecognized, Unrecognized, Unrecognized)
	rec.TotalInWords = "玖佰玖拾玖圆整"
	ReconcileWords(rec, zerolog.Nop())

	assert.Equal(t, "壹佰壹拾叁圆整", rec.TotalInWords)
}

func TestReconcileWordsKeepsAgreement(t *testing.T) {
	rec := recordWith("113.00", Unrecognized, Unrecognized, Unrecognized)
	rec.TotalInWords = "壹佰壹拾叁圆整"
	ReconcileWords(rec, zerolog.Nop())

	assert.Equal(t, "壹佰壹拾叁圆整", rec.TotalInWords)
	assert.Equal(t, "113.00", rec.TotalAmount)
}
