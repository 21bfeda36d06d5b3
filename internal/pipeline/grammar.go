package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"nfce/internal"
	"nfce/internal/util"
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokDigits
	tokNumber
	tokWord
)

// token is one typed step of an item rule. Fields with a name are captured.
type token struct {
	kind      tokenKind
	text      string
	field     string
	skipSpace bool
	separated bool
}

// ItemGrammar describes one receipt item layout: a free-text name, an anchor
// literal, then a fixed sequence of tokens. The name is always the shortest
// run that reaches an anchor whose tokens all match.
type ItemGrammar struct {
	Name   string
	Anchor string
	Tokens []token
}

const (
	fieldCode      = "code"
	fieldQuantity  = "quantity"
	fieldUnit      = "unit"
	fieldUnitPrice = "unit_price"
	fieldTotal     = "total"
)

// NFCeGrammar is the consumer receipt layout:
//
//	<name> (Código: <digits>) Vl. Total Qtde.: <qty> UN: <unit> Vl. Unit.: <price> <total>
var NFCeGrammar = ItemGrammar{
	Name:   "nfce",
	Anchor: "(Código:",
	Tokens: []token{
		{kind: tokDigits, field: fieldCode, skipSpace: true},
		{kind: tokLiteral, text: ")"},
		{kind: tokLiteral, text: "Vl. Total", skipSpace: true},
		{kind: tokLiteral, text: "Qtde.:", skipSpace: true},
		{kind: tokNumber, field: fieldQuantity, skipSpace: true},
		{kind: tokLiteral, text: "UN:", skipSpace: true},
		{kind: tokWord, field: fieldUnit, skipSpace: true},
		{kind: tokLiteral, text: "Vl. Unit.:", skipSpace: true},
		{kind: tokNumber, field: fieldUnitPrice, skipSpace: true},
		{kind: tokNumber, field: fieldTotal, skipSpace: true, separated: true},
	},
}

// PortalGrammar is the item table of the NFC-e consultation page, where the
// code is padded before ")" and the total label follows the unit price:
//
//	<name> (Código: <digits> ) Qtde.: <qty> UN: <unit> Vl. Unit.: <price> Vl. Total <total>
var PortalGrammar = ItemGrammar{
	Name:   "portal",
	Anchor: "(Código:",
	Tokens: []token{
		{kind: tokDigits, field: fieldCode, skipSpace: true},
		{kind: tokLiteral, text: ")", skipSpace: true},
		{kind: tokLiteral, text: "Qtde.:", skipSpace: true},
		{kind: tokNumber, field: fieldQuantity, skipSpace: true},
		{kind: tokLiteral, text: "UN:", skipSpace: true},
		{kind: tokWord, field: fieldUnit, skipSpace: true},
		{kind: tokLiteral, text: "Vl. Unit.:", skipSpace: true},
		{kind: tokNumber, field: fieldUnitPrice, skipSpace: true},
		{kind: tokLiteral, text: "Vl. Total", skipSpace: true},
		{kind: tokNumber, field: fieldTotal, skipSpace: true},
	},
}

// Grammars are tried in order; a document is read with the first one that
// matches at least one item.
var Grammars = []ItemGrammar{NFCeGrammar, PortalGrammar}

type MatchResult struct {
	Grammar   string
	Captures  []internal.RawCapture
	RuleFired bool
}

func (r MatchResult) Included() []internal.RawCapture {
	out := make([]internal.RawCapture, 0, len(r.Captures))
	for _, c := range r.Captures {
		if c.Outcome.Included() {
			out = append(out, c)
		}
	}
	return out
}

func (r MatchResult) ExcludedCount() int {
	return len(r.Captures) - len(r.Included())
}

// MatchDocument runs the known grammars over linearized text and keeps the
// result of the first that fires. Nothing firing gives an empty result.
func MatchDocument(linear string) MatchResult {
	for _, g := range Grammars {
		if res := g.Match(linear); res.RuleFired {
			return res
		}
	}
	return MatchResult{}
}

// Match scans text left to right for non-overlapping item records.
func (g ItemGrammar) Match(text string) MatchResult {
	res := MatchResult{Grammar: g.Name}
	pos := 0
	for pos < len(text) {
		anchorAt, end, fields, ok := g.matchFrom(text, pos)
		if !ok {
			break
		}
		res.RuleFired = true
		res.Captures = append(res.Captures, buildCapture(text[pos:anchorAt], fields, pos))
		pos = end
	}
	return res
}

func buildCapture(name string, fields map[string]string, offset int) internal.RawCapture {
	total := util.ParseNumber(fields[fieldTotal])
	c := internal.RawCapture{
		Name:       strings.TrimSpace(name),
		Code:       fields[fieldCode],
		Quantity:   util.NormalizeNumber(fields[fieldQuantity]),
		Unit:       fields[fieldUnit],
		UnitPrice:  util.NormalizeNumber(fields[fieldUnitPrice]),
		TotalPrice: total.Value,
		Offset:     offset,
	}
	switch {
	case total.Status == util.NumberCoerced:
		c.Outcome = internal.CaptureExcludedUnparsedTotal
	case !c.TotalPrice.GreaterThan(decimal.Zero):
		c.Outcome = internal.CaptureExcludedZeroTotal
	default:
		c.Outcome = internal.CaptureIncluded
	}
	return c
}

// matchFrom finds the earliest anchor after pos (the name needs at least one
// character) whose tokens all match.
func (g ItemGrammar) matchFrom(text string, pos int) (int, int, map[string]string, bool) {
	_, size := utf8.DecodeRuneInString(text[pos:])
	search := pos + size
	for search < len(text) {
		idx := strings.Index(text[search:], g.Anchor)
		if idx < 0 {
			return 0, 0, nil, false
		}
		anchorAt := search + idx
		if end, fields, ok := g.matchTokens(text, anchorAt+len(g.Anchor)); ok {
			return anchorAt, end, fields, true
		}
		search = anchorAt + 1
	}
	return 0, 0, nil, false
}

func (g ItemGrammar) matchTokens(text string, pos int) (int, map[string]string, bool) {
	fields := map[string]string{}
	for i, tok := range g.Tokens {
		if tok.skipSpace {
			next := skipSpaces(text, pos)
			if tok.separated && next == pos {
				return 0, nil, false
			}
			pos = next
		}

		stop := ""
		if i+1 < len(g.Tokens) && g.Tokens[i+1].kind == tokLiteral {
			stop = g.Tokens[i+1].text
		}

		var value string
		var ok bool
		switch tok.kind {
		case tokLiteral:
			if !strings.HasPrefix(text[pos:], tok.text) {
				return 0, nil, false
			}
			pos += len(tok.text)
			continue
		case tokDigits:
			value, ok = takeRun(text, pos, isASCIIDigit, stop)
		case tokNumber:
			value, ok = takeRun(text, pos, isNumberRune, stop)
		case tokWord:
			value, ok = takeRun(text, pos, isWordRune, stop)
		}
		if !ok {
			return 0, nil, false
		}
		if tok.field != "" {
			fields[tok.field] = value
		}
		pos += len(value)
	}
	return pos, fields, true
}

// takeRun consumes at least one rune accepted by fn, ending early where the
// following literal begins so a label glued to the value still matches.
func takeRun(text string, pos int, fn func(rune) bool, stop string) (string, bool) {
	end := pos
	for end < len(text) {
		if end > pos && stop != "" && strings.HasPrefix(text[end:], stop) {
			break
		}
		r, size := utf8.DecodeRuneInString(text[end:])
		if !fn(r) {
			break
		}
		end += size
	}
	if end == pos {
		return "", false
	}
	return text[pos:end], true
}

func skipSpaces(text string, pos int) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isNumberRune(r rune) bool {
	return isASCIIDigit(r) || r == ',' || r == '.'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
