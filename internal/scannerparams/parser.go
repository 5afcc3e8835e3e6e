// Package scannerparams classifies the scanner-parameters XML catalog TWS
// returns into {instrument: {category: [(code, displayName)]}} so it can be
// browsed with `list` instead of scrolled through as raw XML.
package scannerparams

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// ScanCodeEntry is one leaf in the classified scanner tree.
type ScanCodeEntry struct {
	Code        string
	DisplayName string
}

type scanParameterResponse struct {
	ScanTypeList struct {
		ScanType []scanType `xml:"ScanType"`
	} `xml:"ScanTypeList"`
}

type scanType struct {
	ScanCode    string `xml:"scanCode"`
	DisplayName string `xml:"displayName"`
	Vendor      string `xml:"vendor"`
	Instruments string `xml:"instruments"`
}

// GroupScans parses the scanner-parameters XML and classifies every
// ScanType into an instrument/category tree. Malformed XML yields an empty
// tree rather than an error, matching how the upstream scanner treats the
// parameters catalog as best-effort metadata.
func GroupScans(rawXML string) map[string]map[string][]ScanCodeEntry {
	var resp scanParameterResponse
	tree := make(map[string]map[string][]ScanCodeEntry)
	if err := xml.Unmarshal([]byte(rawXML), &resp); err != nil {
		return tree
	}
	for _, st := range resp.ScanTypeList.ScanType {
		instrument, category := categorizeScan(st.ScanCode, st.DisplayName, st.Vendor, st.Instruments)
		if tree[instrument] == nil {
			tree[instrument] = make(map[string][]ScanCodeEntry)
		}
		tree[instrument][category] = append(tree[instrument][category], ScanCodeEntry{
			Code:        st.ScanCode,
			DisplayName: st.DisplayName,
		})
	}
	return tree
}

// categorizeScan buckets one scan type into (instrument, category) using
// vendor code first, then instrument membership, then keyword matches on
// the scan code / display name — the same ordered classification rules the
// scanner's own "list" command uses.
func categorizeScan(code, name, vendor, instruments string) (string, string) {
	switch vendor {
	case "ALV":
		return "ETFs", "ETF Scanners"
	case "REUTFUND":
		return "Funds", "Analyst & Ratings"
	case "RCG":
		return "Stocks", "Technicals (Recognia)"
	case "MSOWN":
		return "Stocks", "Ownership"
	case "WSH":
		return "Stocks", "Events"
	case "MOODY", "SP":
		return "Bonds", "Bond Ratings"
	}

	switch {
	case strings.Contains(instruments, "BOND") && !strings.Contains(instruments, "STK"):
		return "Bonds", "Bond Scanners"
	case strings.Contains(instruments, "FUND") && !strings.Contains(instruments, "STK"):
		return "Funds", "Fund Scanners"
	case strings.Contains(instruments, "NATCOMB"):
		return "Futures & Combos", "Combos"
	case strings.Contains(instruments, "SLB") && !strings.Contains(instruments, "STK"):
		return "Stocks", "Stock Borrow/Loan"
	}

	nameL := strings.ToLower(name)
	codeL := strings.ToLower(code)

	switch {
	case containsAny(nameL, "opt", "imp vol"):
		return "Options", "Options Activity"
	case strings.Contains(nameL, "iv") || strings.Contains(nameL, "hv"):
		return "Options", "Volatility Rank"
	case containsAny(codeL, "gap", "open_perc", "after_hours"):
		return "Stocks", "Gaps & Extended Hours"
	case containsAny(codeL, "perc_gain", "perc_lose"):
		return "Stocks", "Momentum & Gainers"
	case containsAny(nameL, "volume", "active", "hot", "trade count", "trade rate"):
		return "Stocks", "Volume & Activity"
	case (strings.Contains(nameL, "high") || strings.Contains(nameL, "low")) && strings.Contains(codeL, "w_hl"):
		return "Stocks", "Highs & Lows"
	case containsAny(nameL, "halted", "limit up", "not yet traded", "ipo"):
		return "Stocks", "Special"
	case containsAny(nameL, "social", "sentiment", "tweet"):
		return "Stocks", "Social Sentiment"
	case containsAny(nameL, "shortable", "fee rate", "utilization"):
		return "Stocks", "Short Interest"
	case strings.Contains(nameL, "shares outstanding"):
		return "Stocks", "Fundamentals"
	case containsAny(nameL, "dividend", "yield"):
		return "Stocks", "Dividends"
	case containsAny(nameL, "ema", "macd", "ppo", "price vs"):
		return "Stocks", "Technical Indicators"
	}

	return "Stocks", "Other"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FormatSummary renders the instrument/category counts table shown by
// `list` with no group argument.
func FormatSummary(tree map[string]map[string][]ScanCodeEntry) string {
	var b strings.Builder
	total := 0
	for _, cats := range tree {
		for _, entries := range cats {
			total += len(entries)
		}
	}
	fmt.Fprintf(&b, "Scanners -- %d total\n", total)
	fmt.Fprintf(&b, "%-20s  %-30s  %5s\n", "Instrument", "Category", "Count")
	b.WriteString(strings.Repeat("-", 60) + "\n")

	instruments := sortedKeys(tree)
	for _, inst := range instruments {
		cats := sortedCatKeys(tree[inst])
		first := true
		for _, cat := range cats {
			instCol := ""
			if first {
				instCol = inst
			}
			fmt.Fprintf(&b, "%-20s  %-30s  %5d\n", instCol, cat, len(tree[inst][cat]))
			first = false
		}
	}
	b.WriteString("\nUse 'list <group>' to expand a category.\n")
	return b.String()
}

// FormatGroup renders the scan codes in the first category whose name
// fuzzy-matches query, or a "no group matching" message.
func FormatGroup(tree map[string]map[string][]ScanCodeEntry, query string) string {
	queryL := strings.ToLower(query)
	for _, inst := range sortedKeys(tree) {
		for _, cat := range sortedCatKeys(tree[inst]) {
			if strings.Contains(strings.ToLower(cat), queryL) {
				entries := append([]ScanCodeEntry(nil), tree[inst][cat]...)
				sort.Slice(entries, func(i, j int) bool { return entries[i].DisplayName < entries[j].DisplayName })

				var b strings.Builder
				fmt.Fprintf(&b, "%s > %s (%d scanners)\n", inst, cat, len(entries))
				fmt.Fprintf(&b, "%-30s  %s\n", "Scanner Code", "Description")
				b.WriteString(strings.Repeat("-", 60) + "\n")
				for _, e := range entries {
					fmt.Fprintf(&b, "%-30s  %s\n", e.Code, e.DisplayName)
				}
				return b.String()
			}
		}
	}
	return fmt.Sprintf("No group matching '%s'\n", query)
}

func sortedKeys(tree map[string]map[string][]ScanCodeEntry) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCatKeys(cats map[string][]ScanCodeEntry) []string {
	keys := make([]string, 0, len(cats))
	for k := range cats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
