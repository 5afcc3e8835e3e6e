package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

// Momentum pillar thresholds. A result must clear all five to pass
// FilterMomentum.
var (
	minPrice  = decimal.NewFromInt(1)
	maxPrice  = decimal.NewFromInt(20)
	minChange = decimal.NewFromInt(10)
	minRvol   = decimal.NewFromInt(5)
	maxFloat  = int64(10_000_000)
)

// FilterMomentum keeps only the results clearing all five momentum
// pillars: price $1-$20, change% >= 10, rvol >= 5x, float < 10M (skipped
// when unknown), and a catalyst headline present.
func FilterMomentum(results []domain.ScanResult) []domain.ScanResult {
	out := make([]domain.ScanResult, 0, len(results))
	for _, r := range results {
		if passesMomentum(r) {
			out = append(out, r)
		}
	}
	return out
}

func passesMomentum(r domain.ScanResult) bool {
	if r.Last == nil || r.ChangePct == nil {
		return false
	}
	if r.Last.LessThan(minPrice) || r.Last.GreaterThan(maxPrice) {
		return false
	}
	if r.ChangePct.LessThan(minChange) {
		return false
	}
	if r.Rvol == nil || r.Rvol.LessThan(minRvol) {
		return false
	}
	if r.FloatShares != nil && *r.FloatShares >= maxFloat {
		return false
	}
	if r.Catalyst == nil {
		return false
	}
	return true
}

func fmtPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.StringFixed(2)
}

func fmtChangePct(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	sign := ""
	if p.Sign() >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%s%%", sign, p.StringFixed(1))
}

func fmtVolume(v *int64) string {
	if v == nil {
		return "-"
	}
	s := fmt.Sprintf("%d", *v)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func fmtRvol(r *decimal.Decimal) string {
	if r == nil {
		return "-"
	}
	return r.StringFixed(1) + "x"
}

func fmtFloat(f *int64) string {
	if f == nil {
		return "-"
	}
	millions := decimal.NewFromInt(*f).Div(decimal.NewFromInt(1_000_000))
	return millions.StringFixed(1) + "M"
}

func fmtShortPct(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 2
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + ".."
}

// PrintResults renders results as a formatted table, falling back to a
// close-price-only view when the market is closed and no live ticks have
// arrived.
func PrintResults(results []domain.ScanResult) string {
	if len(results) == 0 {
		return "No results.\n"
	}

	hasLive := false
	for _, r := range results {
		if r.Last != nil {
			hasLive = true
			break
		}
	}

	var b strings.Builder
	if hasLive {
		fmt.Fprintf(&b, "%3s  %-6s  %8s  %8s  %12s  %6s  %8s  %7s  %-20s  %-14s  %s\n",
			"#", "Symbol", "Last", "Chg%", "Volume", "RVol", "Float", "Short%", "Name", "Sector", "Catalyst")
		b.WriteString(strings.Repeat("-", 120) + "\n")
		for _, r := range results {
			name := derefOr(r.Name, "-")
			sector := derefOr(r.Sector, "-")
			catalyst := derefOr(r.Catalyst, "")
			fmt.Fprintf(&b, "%3d  %-6s  %8s  %8s  %12s  %6s  %8s  %7s  %-20s  %-14s  %s\n",
				r.Rank, r.Symbol,
				fmtPrice(r.Last), fmtChangePct(r.ChangePct), fmtVolume(r.Volume),
				fmtRvol(r.Rvol), fmtFloat(r.FloatShares), fmtShortPct(r.ShortPct),
				truncate(name, 20), truncate(sector, 14), truncate(catalyst, 30))
		}
	} else {
		b.WriteString("(Market closed -- showing previous close prices)\n")
		fmt.Fprintf(&b, "%3s  %-6s  %8s\n", "#", "Symbol", "Close")
		b.WriteString(strings.Repeat("-", 24) + "\n")
		for _, r := range results {
			fmt.Fprintf(&b, "%3d  %-6s  %8s\n", r.Rank, r.Symbol, fmtPrice(r.Close))
		}
	}

	fmt.Fprintf(&b, "\nTotal: %d stocks\n", len(results))
	return b.String()
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
