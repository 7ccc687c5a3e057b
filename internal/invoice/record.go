package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Unrecognized marks a field no extractor or reconciliation step could fill.
// Downstream CSV consumers expect the literal marker, so it is kept as part
// of the record's external contract rather than being mapped to an empty
// string at the boundary.
const Unrecognized = "未识别"

// Record holds the structured fields derived from one document's raw text.
// All extraction fields are strings; monetary fields carry exactly two
// decimal places once recognized. RawText is retained because the
// counterparty extractors need character offsets into the original text.
type Record struct {
	FileName     string
	InvoiceCode  string
	InvoiceNo    string
	IssueDate    string
	BuyerName    string
	BuyerTaxID   string
	SellerName   string
	SellerTaxID  string
	TotalAmount  string
	TotalInWords string
	TaxAmount    string
	PretaxAmount string
	TaxRate      string
	RawText      string
}

// NewRecord returns a record for the given file with every field unrecognized.
func NewRecord(fileName string) *Record {
	return &Record{
		FileName:     fileName,
		InvoiceCode:  Unrecognized,
		InvoiceNo:    Unrecognized,
		IssueDate:    Unrecognized,
		BuyerName:    Unrecognized,
		BuyerTaxID:   Unrecognized,
		SellerName:   Unrecognized,
		SellerTaxID:  Unrecognized,
		TotalAmount:  Unrecognized,
		TotalInWords: Unrecognized,
		TaxAmount:    Unrecognized,
		PretaxAmount: Unrecognized,
		TaxRate:      Unrecognized,
	}
}

// Known reports whether a field value carries extracted content.
func Known(value string) bool {
	return value != "" && value != Unrecognized
}

// amountOf parses a monetary field into a decimal. A field that is
// unrecognized, unparseable, or not strictly positive reports ok=false:
// zero amounts are deliberately conflated with absent ones so that the
// reconciler's arithmetic never divides by or propagates a zero base.
func amountOf(value string) (decimal.Decimal, bool) {
	if !Known(value) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// formatAmount renders a decimal as the canonical two-decimal field value.
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
