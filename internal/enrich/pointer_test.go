package enrich

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtractRawMissing(t *testing.T) {
	data := map[string]any{}
	if v := extractRawInt(data, "price", "shortName"); v != nil {
		t.Fatalf("expected nil, got %v", v)
	}
}

func TestExtractStrPresent(t *testing.T) {
	data := map[string]any{
		"quoteSummary": map[string]any{
			"result": []any{
				map[string]any{
					"price": map[string]any{
						"shortName": "Apple Inc.",
					},
				},
			},
		},
	}
	s := extractStr(data, "price", "shortName")
	if s == nil || *s != "Apple Inc." {
		t.Fatalf("got %v", s)
	}
}

func TestExtractRawIntPresent(t *testing.T) {
	data := map[string]any{
		"quoteSummary": map[string]any{
			"result": []any{
				map[string]any{
					"defaultKeyStatistics": map[string]any{
						"floatShares": map[string]any{"raw": 5_000_000.0},
					},
				},
			},
		},
	}
	v := extractRawInt(data, "defaultKeyStatistics", "floatShares")
	if v == nil || *v != 5_000_000 {
		t.Fatalf("got %v", v)
	}
}

func TestExtractRawDecimalPresent(t *testing.T) {
	data := map[string]any{
		"quoteSummary": map[string]any{
			"result": []any{
				map[string]any{
					"defaultKeyStatistics": map[string]any{
						"shortPercentOfFloat": map[string]any{"raw": 0.12},
					},
				},
			},
		},
	}
	v := extractRawDecimal(data, "defaultKeyStatistics", "shortPercentOfFloat")
	if v == nil || !v.Equal(decimal.NewFromFloat(0.12)) {
		t.Fatalf("got %v", v)
	}
}
