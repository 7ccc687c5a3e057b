package invoice

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldKind identifies one extractable field of the record.
type FieldKind int

const (
	FieldInvoiceCode FieldKind = iota
	FieldInvoiceNumber
	FieldIssueDate
	FieldTaxRate
	FieldAmountInWords
)

// String returns a short name for logging.
func (k FieldKind) String() string {
	switch k {
	case FieldInvoiceCode:
		return "invoice_code"
	case FieldInvoiceNumber:
		return "invoice_number"
	case FieldIssueDate:
		return "issue_date"
	case FieldTaxRate:
		return "tax_rate"
	case FieldAmountInWords:
		return "amount_in_words"
	default:
		return "unknown"
	}
}

// fieldRule binds a field kind to its ordered pattern candidates and the
// validity predicate a match must satisfy. Patterns are ordered most
// specific first; the first match passing Valid wins.
type fieldRule struct {
	Kind     FieldKind
	Patterns []*regexp.Regexp
	Valid    func(string) bool
}

// numeralClass is the closed character set the amount-in-words field is
// drawn from. 圆 and 元 are both accepted on input; output uses 圆.
const numeralClass = `零壹贰叁肆伍陆柒捌玖拾佰仟万亿圆元角分整`

// validTaxRates is the enumerated set of legal VAT rates in percent.
var validTaxRates = []int{0, 3, 6, 9, 13}

var defaultFieldRules = []fieldRule{
	{
		Kind: FieldInvoiceCode,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`发票代码\s*:?\s*(\d{10,12})`),
			regexp.MustCompile(`代\s*码\s*:?\s*(\d{10,12})`),
			regexp.MustCompile(`发票代码[^0-9]{0,8}(\d{10,12})`),
		},
		Valid: func(s string) bool {
			n := len(digitsOf(s))
			return n >= 10 && n <= 12
		},
	},
	{
		Kind: FieldInvoiceNumber,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`发票号码\s*:?\s*(\d{8})`),
			regexp.MustCompile(`号\s*码\s*:?\s*(\d{8})`),
			regexp.MustCompile(`(?i)No\.?\s*:?\s*(\d{8})\b`),
		},
		Valid: func(s string) bool {
			return len(digitsOf(s)) == 8
		},
	},
	{
		Kind: FieldIssueDate,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`开票日期\s*:?\s*(\d{4}年\s?\d{1,2}月\s?\d{1,2}日)`),
			regexp.MustCompile(`(\d{4}年\d{1,2}月\d{1,2}日)`),
		},
		Valid: func(s string) bool {
			return s != ""
		},
	},
	{
		Kind: FieldTaxRate,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`税\s*率\s*:?\s*(\d{1,2}(?:\.\d+)?)\s*%`),
			regexp.MustCompile(`征收率\s*:?\s*(\d{1,2}(?:\.\d+)?)\s*%`),
			regexp.MustCompile(`(\d{1,2})\s*%`),
		},
		Valid: func(s string) bool {
			_, ok := SnapTaxRate(s)
			return ok
		},
	},
	{
		Kind: FieldAmountInWords,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`大写\)?\s*:?\s*[⊗×]?\s*([` + numeralClass + `]{2,})`),
			regexp.MustCompile(`[¥￥]?\s*([` + numeralClass + `]{3,})`),
		},
		Valid: func(s string) bool {
			return strings.ContainsAny(s, "圆元")
		},
	},
}

// digitsOf strips every non-digit rune from s.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractField runs the ordered pattern candidates of one rule against
// normalized text and returns the first match satisfying the predicate.
func extractField(rule fieldRule, text string) string {
	for _, p := range rule.Patterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 && rule.Valid(m[1]) {
				return m[1]
			}
		}
	}
	return Unrecognized
}

// firstHalf reports whether the byte offset lies in the first half of text.
func firstHalf(offset, textLen int) bool {
	return offset < textLen/2
}

// runeLen counts the characters of a possibly multi-byte string.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
