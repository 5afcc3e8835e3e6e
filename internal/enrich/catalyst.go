package enrich

import "strings"

// CatalystKeywords is the fixed set of terms that mark a news headline as a
// momentum catalyst, checked case-insensitively as substrings.
var CatalystKeywords = []string{
	"fda",
	"approval",
	"drug",
	"trial",
	"earnings",
	"revenue",
	"beat",
	"miss",
	"contract",
	"deal",
	"acquisition",
	"merger",
	"offering",
	"patent",
	"partnership",
	"upgrade",
	"price target",
	"dividend",
	"buyback",
	"split",
	"ceo",
	"appointed",
	"resign",
}

// NewsItem is one headline returned by the news search endpoint.
type NewsItem struct {
	Title              string
	ProviderPublishTime *int64
}

// ClassifyCatalyst returns the first headline matching a catalyst keyword
// along with its publish time, or ok=false if none match.
func ClassifyCatalyst(news []NewsItem) (title string, publishTime *int64, ok bool) {
	for _, item := range news {
		lower := strings.ToLower(item.Title)
		for _, kw := range CatalystKeywords {
			if strings.Contains(lower, kw) {
				return item.Title, item.ProviderPublishTime, true
			}
		}
	}
	return "", nil, false
}
