package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"nfce/internal"
)

type Class string

const (
	ClassA Class = "A"
	ClassB Class = "B"
	ClassC Class = "C"
)

var (
	hundred   = decimal.NewFromInt(100)
	classACut = decimal.NewFromInt(80)
	classBCut = decimal.NewFromInt(95)
)

// ABCEntry is one product on the Pareto curve. Percentages are 0..100.
type ABCEntry struct {
	Product    string
	Total      decimal.Decimal
	Share      decimal.Decimal
	Cumulative decimal.Decimal
	Class      Class
}

// ClassifyABC groups spend by product, sorts it descending and assigns
// class A up to 80% cumulative spend, B up to 95% and C for the tail.
func ClassifyABC(records []internal.PurchaseRecord) []ABCEntry {
	totals := map[string]decimal.Decimal{}
	for _, r := range records {
		totals[r.Product] = totals[r.Product].Add(r.TotalPrice)
	}

	out := make([]ABCEntry, 0, len(totals))
	grand := decimal.Zero
	for product, total := range totals {
		out = append(out, ABCEntry{Product: product, Total: total})
		grand = grand.Add(total)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Product < out[j].Product
	})
	if grand.IsZero() {
		return out
	}

	running := decimal.Zero
	for i := range out {
		running = running.Add(out[i].Total)
		out[i].Share = out[i].Total.Mul(hundred).Div(grand)
		out[i].Cumulative = running.Mul(hundred).Div(grand)
		switch {
		case out[i].Cumulative.LessThanOrEqual(classACut):
			out[i].Class = ClassA
		case out[i].Cumulative.LessThanOrEqual(classBCut):
			out[i].Class = ClassB
		default:
			out[i].Class = ClassC
		}
	}
	return out
}

type Summary struct {
	TotalSpend  decimal.Decimal
	Products    int
	ClassA      int
	ClassAShare decimal.Decimal
}

func Summarize(entries []ABCEntry) Summary {
	s := Summary{Products: len(entries), TotalSpend: decimal.Zero, ClassAShare: decimal.Zero}
	classASpend := decimal.Zero
	for _, e := range entries {
		s.TotalSpend = s.TotalSpend.Add(e.Total)
		if e.Class == ClassA {
			s.ClassA++
			classASpend = classASpend.Add(e.Total)
		}
	}
	if !s.TotalSpend.IsZero() {
		s.ClassAShare = classASpend.Mul(hundred).Div(s.TotalSpend)
	}
	return s
}

// FilterSources keeps the records whose source reference contains one of
// the given fragments. No fragments keeps everything.
func FilterSources(records []internal.PurchaseRecord, fragments []string) []internal.PurchaseRecord {
	if len(fragments) == 0 {
		return records
	}
	out := make([]internal.PurchaseRecord, 0, len(records))
	for _, r := range records {
		for _, f := range fragments {
			if f != "" && strings.Contains(r.SourceReference, f) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
