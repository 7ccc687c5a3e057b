package invoice

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ExtractRecord derives a draft record from the raw text of one document.
// The text is normalized, every field extractor runs its ordered pattern
// candidates, and fields without a satisfying match stay unrecognized.
// Extraction is pure: nothing outside the returned record is touched.
func ExtractRecord(fileName, rawText string) *Record {
	rec := NewRecord(fileName)
	rec.RawText = rawText
	text := NormalizeText(rawText)

	for _, rule := range defaultFieldRules {
		value := extractField(rule, text)
		switch rule.Kind {
		case FieldInvoiceCode:
			rec.InvoiceCode = value
		case FieldInvoiceNumber:
			rec.InvoiceNo = value
		case FieldIssueDate:
			rec.IssueDate = value
		case FieldTaxRate:
			if Known(value) {
				if rate, ok := SnapTaxRate(value); ok {
					rec.TaxRate = strconv.Itoa(rate)
				}
			}
		case FieldAmountInWords:
			rec.TotalInWords = value
		}
	}

	extractParties(rec, text)
	extractAmounts(rec, text)
	return rec
}

// SnapTaxRate parses a raw percentage token and snaps it to the nearest
// member of the enumerated valid set when within one percentage point.
// Values further away are discarded.
func SnapTaxRate(raw string) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
	if err != nil {
		return 0, false
	}
	for _, rate := range validTaxRates {
		diff := v - float64(rate)
		if diff >= -1.0 && diff <= 1.0 {
			return rate, true
		}
	}
	return 0, false
}

// Counterparty extraction.
//
// Names and tax ids are anchored on the buyer/seller sections of the
// document. OCR output rarely keeps the printed layout, so beyond the
// keyword anchors a positional heuristic applies: candidates in the first
// half of the text are preferred as buyer, those in the second half as
// seller.

var (
	buyerAnchor  = regexp.MustCompile(`购\s*买?\s*方|买方`)
	sellerAnchor = regexp.MustCompile(`销\s*售?\s*方|卖方`)

	nameCandidate  = regexp.MustCompile(`名\s*称\s*:?\s*([^\s:()]{2,60})`)
	taxIDCandidate = regexp.MustCompile(`([0-9A-Za-z]{15,20})`)

	// A counterparty name must contain one organizational-entity keyword
	// and none of the tokens that mark a mislocated match.
	entityKeywords = []string{
		"公司", "集团", "厂", "企业", "商行", "商店", "中心",
		"事务所", "合作社", "酒店", "医院", "学校", "大学", "有限", "店",
	}
	nameDisqualifiers = []string{
		"纳税人", "识别号", "税号", "金额", "发票", "开票",
		"密码", "备注", "合计", "%", "￥", "¥",
	}
)

// anchorWindow bounds how far after a buyer/seller anchor a tax id may
// appear, in bytes (roughly 100 characters of CJK text).
const anchorWindow = 300

type positioned struct {
	value  string
	offset int
}

// extractParties fills buyer/seller name and tax id using keyword anchors
// plus the positional preference. Buyer and seller must never resolve to
// the same value; the buyer keeps a contested match.
func extractParties(rec *Record, text string) {
	names := collectCandidates(nameCandidate, text, validCompanyName)
	rec.BuyerName = pickPositional(names, text, true)
	rec.SellerName = pickPositional(excludeValue(names, rec.BuyerName), text, false)

	buyerIDs := candidatesNearAnchor(buyerAnchor, sellerAnchor, text)
	sellerIDs := candidatesNearAnchor(sellerAnchor, buyerAnchor, text)
	rec.BuyerTaxID = pickPositional(buyerIDs, text, true)
	rec.SellerTaxID = pickPositional(excludeValue(sellerIDs, rec.BuyerTaxID), text, false)
}

func validCompanyName(s string) bool {
	n := runeLen(s)
	if n < 4 || n > 100 {
		return false
	}
	for _, bad := range nameDisqualifiers {
		if strings.Contains(s, bad) {
			return false
		}
	}
	for _, kw := range entityKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func validTaxID(s string) bool {
	if n := len(s); n < 15 || n > 20 {
		return false
	}
	return len(digitsOf(s)) >= 10
}

// collectCandidates gathers every pattern match passing the predicate,
// keeping its byte offset for the positional check.
func collectCandidates(p *regexp.Regexp, text string, valid func(string) bool) []positioned {
	var out []positioned
	for _, loc := range p.FindAllStringSubmatchIndex(text, -1) {
		if len(loc) < 4 || loc[2] < 0 {
			continue
		}
		v := text[loc[2]:loc[3]]
		if valid(v) {
			out = append(out, positioned{value: v, offset: loc[2]})
		}
	}
	return out
}

// candidatesNearAnchor gathers tax-id shaped tokens within the window
// following each anchor occurrence, uppercase-normalized. The window is
// cut short at the other party's anchor so a buyer window never bleeds
// into the seller block.
func candidatesNearAnchor(anchor, otherAnchor *regexp.Regexp, text string) []positioned {
	var out []positioned
	for _, loc := range anchor.FindAllStringIndex(text, -1) {
		end := loc[1] + anchorWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[loc[1]:end]
		if m := otherAnchor.FindStringIndex(window); m != nil {
			window = window[:m[0]]
		}
		for _, m := range taxIDCandidate.FindAllStringSubmatchIndex(window, -1) {
			v := strings.ToUpper(window[m[2]:m[3]])
			if validTaxID(v) {
				out = append(out, positioned{value: v, offset: loc[1] + m[2]})
			}
		}
	}
	return out
}

// pickPositional returns the first candidate whose offset satisfies the
// positional preference (first half for buyer, second half for seller),
// falling back to the first candidate when none does.
func pickPositional(cands []positioned, text string, wantFirstHalf bool) string {
	for _, c := range cands {
		if firstHalf(c.offset, len(text)) == wantFirstHalf {
			return c.value
		}
	}
	if len(cands) > 0 {
		return cands[0].value
	}
	return Unrecognized
}

func excludeValue(cands []positioned, value string) []positioned {
	if !Known(value) {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if c.value != value {
			out = append(out, c)
		}
	}
	return out
}

// Monetary amounts.

var amountLabels = []struct {
	assign  FieldAssign
	pattern *regexp.Regexp
}{
	{AssignTotal, regexp.MustCompile(`价税合计[^0-9¥￥]{0,24}[¥￥]\s*([0-9][0-9,]*\.\d{2})`)},
	{AssignTax, regexp.MustCompile(`税\s*额[^0-9¥￥]{0,16}[¥￥]\s*([0-9][0-9,]*\.\d{2})`)},
	{AssignPretax, regexp.MustCompile(`金\s*额[^0-9¥￥]{0,16}[¥￥]\s*([0-9][0-9,]*\.\d{2})`)},
	{AssignPretax, regexp.MustCompile(`合\s*计[^0-9¥￥]{0,16}[¥￥]\s*([0-9][0-9,]*\.\d{2})`)},
}

// FieldAssign names the amount slot a labeled match would land in.
type FieldAssign int

const (
	AssignTotal FieldAssign = iota
	AssignTax
	AssignPretax
)

// extractAmounts collects every labeled currency match into one list.
// When exactly three distinct valid amounts remain they are assigned by
// magnitude (smallest tax, middle pre-tax, largest total) regardless of
// their labels, since labels are frequently OCR-garbled. Any other count
// falls back to label-based assignment, first match per slot.
func extractAmounts(rec *Record, text string) {
	type labeled struct {
		assign FieldAssign
		value  string
	}
	var matches []labeled
	seen := map[string]bool{}
	for _, al := range amountLabels {
		for _, m := range al.pattern.FindAllStringSubmatch(text, -1) {
			v := strings.ReplaceAll(m[1], ",", "")
			if _, ok := amountOf(v); !ok {
				continue
			}
			if seen[v] {
				continue
			}
			seen[v] = true
			matches = append(matches, labeled{assign: al.assign, value: v})
		}
	}

	if len(matches) == 3 {
		values := []string{matches[0].value, matches[1].value, matches[2].value}
		sort.Slice(values, func(i, j int) bool {
			a, _ := amountOf(values[i])
			b, _ := amountOf(values[j])
			return a.LessThan(b)
		})
		rec.TaxAmount = values[0]
		rec.PretaxAmount = values[1]
		rec.TotalAmount = values[2]
		return
	}

	for _, m := range matches {
		switch m.assign {
		case AssignTotal:
			if !Known(rec.TotalAmount) {
				rec.TotalAmount = m.value
			}
		case AssignTax:
			if !Known(rec.TaxAmount) {
				rec.TaxAmount = m.value
			}
		case AssignPretax:
			if !Known(rec.PretaxAmount) {
				rec.PretaxAmount = m.value
			}
		}
	}
}
