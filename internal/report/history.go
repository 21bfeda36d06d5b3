package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"nfce/internal"
)

type PricePoint struct {
	Product   string
	Date      time.Time
	UnitPrice decimal.Decimal
	Source    string
}

// PriceHistory lists the unit price of every dated purchase, ordered by
// product and then date. Records with an unknown date cannot be placed on
// the timeline and are left out.
func PriceHistory(records []internal.PurchaseRecord) []PricePoint {
	out := make([]PricePoint, 0, len(records))
	for _, r := range records {
		if !r.Date.Known {
			continue
		}
		out = append(out, PricePoint{Product: r.Product, Date: r.Date.Time, UnitPrice: r.UnitPrice, Source: r.SourceReference})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Product != out[j].Product {
			return out[i].Product < out[j].Product
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func AveragePrice(points []PricePoint, product string) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := int64(0)
	for _, p := range points {
		if p.Product == product {
			sum = sum.Add(p.UnitPrice)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)), true
}
