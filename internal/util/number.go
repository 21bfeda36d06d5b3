package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var plainNumberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

type NumberStatus string

const (
	NumberEmpty   NumberStatus = "empty"
	NumberParsed  NumberStatus = "parsed"
	NumberCoerced NumberStatus = "coerced"
)

// ParsedNumber keeps the outcome of a locale number conversion so callers can
// tell a printed zero apart from text that failed to parse.
type ParsedNumber struct {
	Raw    string
	Value  decimal.Decimal
	Status NumberStatus
}

// ParseNumber converts "1.234,50" style text: dots are thousands separators
// and the comma is the decimal mark.
func ParseNumber(raw string) ParsedNumber {
	out := ParsedNumber{Raw: raw, Value: decimal.Zero, Status: NumberEmpty}
	if raw == "" {
		return out
	}

	norm := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", "."))
	if !plainNumberPattern.MatchString(norm) {
		out.Status = NumberCoerced
		return out
	}
	norm = strings.TrimSuffix(norm, ".")
	if strings.HasPrefix(norm, ".") {
		norm = "0" + norm
	}

	value, err := decimal.NewFromString(norm)
	if err != nil {
		out.Status = NumberCoerced
		return out
	}
	out.Value = value
	out.Status = NumberParsed
	return out
}

// NormalizeNumber is ParseNumber without the outcome: anything unparseable is 0.
func NormalizeNumber(raw string) decimal.Decimal {
	return ParseNumber(raw).Value
}

// FormatNumber renders d with dot thousands and a decimal comma. A negative
// places keeps the value's own scale.
func FormatNumber(d decimal.Decimal, places int32) string {
	var s string
	if places >= 0 {
		s = d.StringFixed(places)
	} else {
		s = d.String()
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	grouped := strings.Builder{}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	if !hasFrac {
		return sign + grouped.String()
	}
	return sign + grouped.String() + "," + fracPart
}
