package enrich

import "github.com/shopspring/decimal"

// navigate walks quoteSummary.result[0].module.field out of a decoded Yahoo
// Finance quoteSummary response.
func navigate(data map[string]any, module, field string) (any, bool) {
	qs, ok := data["quoteSummary"].(map[string]any)
	if !ok {
		return nil, false
	}
	results, ok := qs["result"].([]any)
	if !ok || len(results) == 0 {
		return nil, false
	}
	first, ok := results[0].(map[string]any)
	if !ok {
		return nil, false
	}
	mod, ok := first[module].(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok := mod[field]
	return val, ok
}

// extractStr reads a plain string field, e.g. summaryProfile.sector.
func extractStr(data map[string]any, module, field string) *string {
	val, ok := navigate(data, module, field)
	if !ok {
		return nil
	}
	s, ok := val.(string)
	if !ok {
		return nil
	}
	return &s
}

// extractRawInt reads the {raw: N} wrapper Yahoo uses for numeric fields
// and truncates it to an integer count (shares, volume).
func extractRawInt(data map[string]any, module, field string) *int64 {
	val, ok := navigate(data, module, field)
	if !ok {
		return nil
	}
	wrapper, ok := val.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := wrapper["raw"].(float64)
	if !ok {
		return nil
	}
	n := int64(raw)
	return &n
}

// extractRawDecimal reads the {raw: N} wrapper as a decimal, used for
// ratio-like fields such as shortPercentOfFloat.
func extractRawDecimal(data map[string]any, module, field string) *decimal.Decimal {
	val, ok := navigate(data, module, field)
	if !ok {
		return nil
	}
	wrapper, ok := val.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := wrapper["raw"].(float64)
	if !ok {
		return nil
	}
	d := decimal.NewFromFloat(raw)
	return &d
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
