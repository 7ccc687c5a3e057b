package invoice

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/invoicekit/fapiao/internal/cnnum"
)

var (
	// amountTolerance is the largest acceptable gap between an extracted
	// total and preTax+tax before the extracted value is overwritten.
	amountTolerance = decimal.RequireFromString("0.02")

	// wordsTolerance bounds the disagreement between the numeric amount
	// and the parsed amount-in-words.
	wordsTolerance = decimal.RequireFromString("0.01")

	hundred = decimal.NewFromInt(100)
)

// defaultRate is assumed when tax and pre-tax amounts imply a rate that
// is not close to any member of the valid set.
const defaultRate = 6

// ReconcileAmounts enforces the arithmetic relationships between total,
// pre-tax amount, tax amount and tax rate, filling missing values and
// correcting violations. Steps run in a fixed order, each only when its
// preconditions hold; afterwards the three amounts, where all known, are
// numerically self-consistent with tax < preTax < total. An extracted
// value can be overwritten by a computed one when the other two were more
// consistent, which is the accepted trade-off under OCR noise.
func ReconcileAmounts(rec *Record, log zerolog.Logger) {
	total, hasTotal := amountOf(rec.TotalAmount)
	tax, hasTax := amountOf(rec.TaxAmount)
	pretax, hasPretax := amountOf(rec.PretaxAmount)
	rate, hasRate := rateOf(rec.TaxRate)

	// Step 1: with all three amounts present, magnitude ordering is
	// trusted over whatever slots the extractor picked.
	if hasTotal && hasTax && hasPretax {
		tax, pretax, total = sortAmounts(tax, pretax, total)
	}

	switch {
	case hasTotal && hasRate:
		// preTax = total / (1 + rate/100)
		divisor := hundred.Add(decimal.NewFromInt(int64(rate))).Div(hundred)
		derivedPretax := total.Div(divisor).Round(2)
		derivedTax := total.Sub(derivedPretax)
		if !hasPretax {
			pretax, hasPretax = derivedPretax, true
		}
		if !hasTax {
			tax, hasTax = derivedTax, true
		}

	case hasPretax && hasRate:
		derivedTax := pretax.Mul(decimal.NewFromInt(int64(rate))).Div(hundred).Round(2)
		if !hasTax {
			tax, hasTax = derivedTax, true
		}
		if !hasTotal {
			total, hasTotal = pretax.Add(tax), true
		}

	case hasPretax && hasTax:
		sum := pretax.Add(tax)
		if !hasTotal || total.Sub(sum).Abs().GreaterThan(amountTolerance) {
			total, hasTotal = sum, true
		}
		if !hasRate {
			rate, hasRate = impliedRate(tax, pretax), true
		}
	}

	// Final pass: recompute the total and re-verify the ordering.
	if hasTotal && hasTax && hasPretax {
		sum := pretax.Add(tax)
		if total.Sub(sum).Abs().GreaterThan(amountTolerance) {
			total = sum
		}
		if !tax.LessThan(pretax) || !pretax.LessThan(total) {
			tax, pretax, total = sortAmounts(tax, pretax, total)
			if !tax.LessThan(pretax) || !pretax.LessThan(total) {
				// Structurally this needs two equal amounts; it should
				// not happen on real documents.
				log.Warn().
					Str("file", rec.FileName).
					Str("tax", tax.String()).
					Str("pretax", pretax.String()).
					Str("total", total.String()).
					Msg("amounts remain inconsistent after reconciliation")
			}
		}
	}

	if hasTotal {
		rec.TotalAmount = formatAmount(total)
	}
	if hasTax {
		rec.TaxAmount = formatAmount(tax)
	}
	if hasPretax {
		rec.PretaxAmount = formatAmount(pretax)
	}
	if hasRate {
		rec.TaxRate = strconv.Itoa(rate)
	}
}

// ReconcileWords keeps the numeric total and its written-out form in
// agreement. A missing side is derived from the other; when both are
// known and disagree by more than one cent, the numeric amount wins and
// its derived word form overwrites the extracted one, since the
// word-form pattern is anchored on a much noisier character class.
func ReconcileWords(rec *Record, log zerolog.Logger) {
	total, hasTotal := amountOf(rec.TotalAmount)
	hasWords := Known(rec.TotalInWords)

	switch {
	case hasTotal:
		words, err := cnnum.ToWords(total)
		if err != nil {
			return
		}
		if !hasWords {
			rec.TotalInWords = words
			return
		}
		parsed, err := cnnum.FromWords(rec.TotalInWords)
		if err != nil || parsed.Sub(total).Abs().GreaterThan(wordsTolerance) {
			log.Debug().
				Str("file", rec.FileName).
				Str("extracted", rec.TotalInWords).
				Str("derived", words).
				Msg("amount in words disagrees with numeric total, overwriting")
			rec.TotalInWords = words
		}

	case hasWords:
		parsed, err := cnnum.FromWords(rec.TotalInWords)
		if err == nil && parsed.IsPositive() {
			rec.TotalAmount = formatAmount(parsed)
		}
	}
}

// rateOf parses the tax-rate field and checks membership in the valid set.
func rateOf(value string) (int, bool) {
	if !Known(value) {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	for _, r := range validTaxRates {
		if n == r {
			return n, true
		}
	}
	return 0, false
}

// impliedRate computes tax/preTax*100 and snaps it to the nearest valid
// rate, defaulting when no candidate is within one percentage point.
func impliedRate(tax, pretax decimal.Decimal) int {
	if !pretax.IsPositive() {
		return defaultRate
	}
	implied, _ := tax.Div(pretax).Mul(hundred).Float64()
	best, bestDiff := defaultRate, 1.0
	for _, r := range validTaxRates {
		diff := implied - float64(r)
		if diff < 0 {
			diff = -diff
		}
		if diff <= bestDiff {
			best, bestDiff = r, diff
		}
	}
	return best
}

// sortAmounts returns the three amounts in ascending order.
func sortAmounts(a, b, c decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	if a.GreaterThan(b) {
		a, b = b, a
	}
	if b.GreaterThan(c) {
		b, c = c, b
	}
	if a.GreaterThan(b) {
		a, b = b, a
	}
	return a, b, c
}
