package enrich

import "testing"

func TestClassifyCatalystFDA(t *testing.T) {
	news := []NewsItem{{Title: "FDA Approves New Drug for ACME Corp"}}
	title, publishTime, ok := ClassifyCatalyst(news)
	if !ok || title != "FDA Approves New Drug for ACME Corp" || publishTime != nil {
		t.Fatalf("got title=%q publishTime=%v ok=%v", title, publishTime, ok)
	}
}

func TestClassifyCatalystWithTimestamp(t *testing.T) {
	ts := int64(1700000000)
	news := []NewsItem{{Title: "FDA Approves New Drug", ProviderPublishTime: &ts}}
	_, publishTime, ok := ClassifyCatalyst(news)
	if !ok || publishTime == nil || *publishTime != ts {
		t.Fatalf("expected publishTime=%d, got %v", ts, publishTime)
	}
}

func TestClassifyCatalystSkipsNonMatching(t *testing.T) {
	news := []NewsItem{
		{Title: "Stock market rises today"},
		{Title: "ACME beats earnings expectations"},
	}
	title, _, ok := ClassifyCatalyst(news)
	if !ok || title != "ACME beats earnings expectations" {
		t.Fatalf("got title=%q ok=%v", title, ok)
	}
}

func TestClassifyCatalystNone(t *testing.T) {
	_, _, ok := ClassifyCatalyst([]NewsItem{{Title: "Nothing interesting happened"}})
	if ok {
		t.Fatal("expected no catalyst match")
	}
}

func TestClassifyCatalystEmpty(t *testing.T) {
	_, _, ok := ClassifyCatalyst(nil)
	if ok {
		t.Fatal("expected no catalyst match on empty news")
	}
}

func TestClassifyCatalystCaseInsensitive(t *testing.T) {
	_, _, ok := ClassifyCatalyst([]NewsItem{{Title: "CEO Resigns from Company"}})
	if !ok {
		t.Fatal("expected case-insensitive match")
	}
}
