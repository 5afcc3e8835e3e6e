package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func decimalOne() decimal.Decimal    { return decimal.NewFromInt(1) }
func decimalTwenty() decimal.Decimal { return decimal.NewFromInt(20) }

func changePctOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func recomputeRvol(volume, avgVolume int64) decimal.Decimal {
	return decimal.NewFromInt(volume).Div(decimal.NewFromInt(avgVolume))
}

func countScanners(scanners string) int {
	if scanners == "" {
		return 0
	}
	return len(strings.Split(scanners, ","))
}

func parseHeadlines(raw string) []string {
	var headlines []string
	if err := json.Unmarshal([]byte(raw), &headlines); err != nil {
		return nil
	}
	return headlines
}

// localTimeStr converts an RFC3339 timestamp to a local HH:MM:SS clock
// string, falling back to a raw prefix when the timestamp doesn't parse.
func localTimeStr(iso string) string {
	if t, err := time.Parse(time.RFC3339, iso); err == nil {
		return t.Local().Format("15:04:05")
	}
	if len(iso) >= 8 {
		return iso[:8]
	}
	return "-"
}
