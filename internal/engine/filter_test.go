package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kyp0717/momentum-scanner/internal/domain"
)

func makeResult(last, changePct, rvol *string, floatShares *int64, catalyst *string) domain.ScanResult {
	parse := func(s *string) *decimal.Decimal {
		if s == nil {
			return nil
		}
		d, err := decimal.NewFromString(*s)
		if err != nil {
			panic(err)
		}
		return &d
	}
	return domain.ScanResult{
		Rank:        1,
		Symbol:      "TEST",
		Last:        parse(last),
		ChangePct:   parse(changePct),
		Rvol:        parse(rvol),
		FloatShares: floatShares,
		Catalyst:    catalyst,
	}
}

func ptr(s string) *string   { return &s }
func i64(n int64) *int64     { return &n }

func TestFilterMomentumPass(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestFilterMomentumFailPriceTooHigh(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("25.0"), ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumFailPriceTooLow(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("0.5"), ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumFailChangeLow(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("5.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumFailRvolLow(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("3.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumFailFloatHigh(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("6.0"), i64(15_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumFailNoCatalyst(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("6.0"), i64(5_000_000), nil)}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumUnknownFloatPasses(t *testing.T) {
	results := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("6.0"), nil, ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestFilterMomentumNoPrice(t *testing.T) {
	results := []domain.ScanResult{makeResult(nil, ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(results); len(got) != 0 {
		t.Fatalf("expected 0 results, got %d", len(got))
	}
}

func TestFilterMomentumBoundaryPrice(t *testing.T) {
	low := []domain.ScanResult{makeResult(ptr("1.0"), ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(low); len(got) != 1 {
		t.Fatalf("expected boundary price 1.0 to pass, got %d", len(got))
	}
	high := []domain.ScanResult{makeResult(ptr("20.0"), ptr("15.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(high); len(got) != 1 {
		t.Fatalf("expected boundary price 20.0 to pass, got %d", len(got))
	}
}

func TestFilterMomentumBoundaryChange(t *testing.T) {
	pass := []domain.ScanResult{makeResult(ptr("5.0"), ptr("10.0"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(pass); len(got) != 1 {
		t.Fatalf("expected boundary change 10.0 to pass, got %d", len(got))
	}
	fail := []domain.ScanResult{makeResult(ptr("5.0"), ptr("9.9"), ptr("6.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(fail); len(got) != 0 {
		t.Fatalf("expected change 9.9 to fail, got %d", len(got))
	}
}

func TestFilterMomentumBoundaryRvol(t *testing.T) {
	pass := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("5.0"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(pass); len(got) != 1 {
		t.Fatalf("expected boundary rvol 5.0 to pass, got %d", len(got))
	}
	fail := []domain.ScanResult{makeResult(ptr("5.0"), ptr("15.0"), ptr("4.9"), i64(5_000_000), ptr("FDA approval"))}
	if got := FilterMomentum(fail); len(got) != 0 {
		t.Fatalf("expected rvol 4.9 to fail, got %d", len(got))
	}
}

func TestFmtPrice(t *testing.T) {
	d, _ := decimal.NewFromString("12.345")
	if got := fmtPrice(&d); got != "12.35" {
		t.Fatalf("got %q", got)
	}
	if got := fmtPrice(nil); got != "-" {
		t.Fatalf("got %q", got)
	}
}

func TestFmtChangePct(t *testing.T) {
	pos, _ := decimal.NewFromString("15.0")
	if got := fmtChangePct(&pos); got != "+15.0%" {
		t.Fatalf("got %q", got)
	}
	neg, _ := decimal.NewFromString("-5.3")
	if got := fmtChangePct(&neg); got != "-5.3%" {
		t.Fatalf("got %q", got)
	}
}

func TestFmtVolume(t *testing.T) {
	if got := fmtVolume(i64(1234567)); got != "1,234,567" {
		t.Fatalf("got %q", got)
	}
	if got := fmtVolume(i64(100)); got != "100" {
		t.Fatalf("got %q", got)
	}
}

func TestFmtFloat(t *testing.T) {
	if got := fmtFloat(i64(5_000_000)); got != "5.0M" {
		t.Fatalf("got %q", got)
	}
}

func TestFmtShortPct(t *testing.T) {
	d, _ := decimal.NewFromString("0.15")
	if got := fmtShortPct(&d); got != "15.0%" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("a very long string here", 10); got != "a very l.." {
		t.Fatalf("got %q", got)
	}
}
