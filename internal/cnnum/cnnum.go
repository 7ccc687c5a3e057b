// Package cnnum converts between decimal amounts and their formal
// Chinese numeral representation (大写金额), at yuan/jiao/fen granularity.
package cnnum

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var cnDigits = []string{"零", "壹", "贰", "叁", "肆", "伍", "陆", "柒", "捌", "玖"}

var smallUnits = []string{"", "拾", "佰", "仟"}

// sectionUnits separate 4-digit groups: ones, 万 (1e4), 亿 (1e8), 万亿 (1e12).
var sectionUnits = []string{"", "万", "亿", "万亿"}

// maxAmount bounds conversion; the section units above cover up to 1e16.
var maxAmount = decimal.New(1, 16)

// ToWords renders a non-negative amount as its canonical written-out
// form, e.g. 1234.56 -> 壹仟贰佰叁拾肆圆伍角陆分. Runs of zeros collapse
// to a single 零 and a whole amount takes the 整 suffix.
func ToWords(amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", fmt.Errorf("amount must be non-negative, got %s", amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return "", fmt.Errorf("amount too large: %s", amount)
	}

	totalFen := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	yuan := totalFen / 100
	jiao := (totalFen / 10) % 10
	fen := totalFen % 10

	var b strings.Builder
	b.WriteString(intWords(yuan))
	b.WriteString("圆")

	if jiao == 0 && fen == 0 {
		b.WriteString("整")
		return b.String(), nil
	}
	if jiao > 0 {
		b.WriteString(cnDigits[jiao])
		b.WriteString("角")
	} else {
		// 0 jiao with nonzero fen needs the explicit zero: 壹佰圆零伍分.
		b.WriteString("零")
	}
	if fen > 0 {
		b.WriteString(cnDigits[fen])
		b.WriteString("分")
	}
	return b.String(), nil
}

// intWords converts the integer yuan part, grouping in sections of four
// digits with 万/亿 markers between them.
func intWords(n int64) string {
	if n == 0 {
		return "零"
	}

	var sections [4]int64
	count := 0
	for v := n; v > 0; v /= 10000 {
		sections[count] = v % 10000
		count++
	}

	var b strings.Builder
	needZero := false
	for i := count - 1; i >= 0; i-- {
		s := sections[i]
		if s == 0 {
			// An all-zero section contributes at most one 零 before the
			// next nonzero section.
			if b.Len() > 0 {
				needZero = true
			}
			continue
		}
		if needZero || (b.Len() > 0 && s < 1000) {
			b.WriteString("零")
		}
		b.WriteString(sectionWords(s))
		b.WriteString(sectionUnits[i])
		needZero = false
	}
	return b.String()
}

// sectionWords converts one 1..9999 section, collapsing interior zero
// runs and dropping trailing zeros.
func sectionWords(s int64) string {
	var b strings.Builder
	pendingZero := false
	started := false
	for pos := 3; pos >= 0; pos-- {
		div := int64(1)
		for i := 0; i < pos; i++ {
			div *= 10
		}
		d := (s / div) % 10
		if d == 0 {
			if started {
				pendingZero = true
			}
			continue
		}
		if pendingZero {
			b.WriteString("零")
			pendingZero = false
		}
		b.WriteString(cnDigits[d])
		b.WriteString(smallUnits[pos])
		started = true
	}
	return b.String()
}

// FromWords parses a written-out amount back into a decimal. Digits
// accumulate against their following unit; 万 and 亿 flush the running
// section into the total. Both 圆 and 元 are accepted as the yuan marker.
// Round-trip with ToWords is exact for strings ToWords itself produces;
// historical formatting conventions outside that canon may not parse.
func FromWords(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, fmt.Errorf("empty amount text")
	}

	var (
		total   int64 // completed 亿-level value, in yuan
		section int64 // running sub-万 accumulation
		digit   int64
		fen     int64
		yuan    int64
		sawYuan bool
	)

	digitOf := func(r rune) (int64, bool) {
		for i, d := range cnDigits {
			if string(r) == d {
				return int64(i), true
			}
		}
		return 0, false
	}

	for _, r := range text {
		if d, ok := digitOf(r); ok {
			digit = d
			continue
		}
		switch r {
		case '拾':
			if digit == 0 {
				digit = 1
			}
			section += digit * 10
			digit = 0
		case '佰':
			section += digit * 100
			digit = 0
		case '仟':
			section += digit * 1000
			digit = 0
		case '万':
			section = (section + digit) * 10000
			total += section
			section = 0
			digit = 0
		case '亿':
			total = (total + section + digit) * 100000000
			section = 0
			digit = 0
		case '圆', '元':
			yuan = total + section + digit
			total, section, digit = 0, 0, 0
			sawYuan = true
		case '角':
			fen += digit * 10
			digit = 0
		case '分':
			fen += digit
			digit = 0
		case '整', '正':
			// whole-amount suffix, no value
		default:
			return decimal.Zero, fmt.Errorf("unexpected character %q in amount text", r)
		}
	}

	if !sawYuan {
		yuan = total + section + digit
	}

	result := decimal.NewFromInt(yuan).Add(decimal.New(fen, -2))
	return result, nil
}
