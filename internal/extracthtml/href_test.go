package extracthtml

import (
	"net/url"
	"testing"
)

func TestResolveHref(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://acme.lightning.force.com/lightning/o/Lead/list")

	if got := ResolveHref(base, "/lightning/r/Lead/00Q5g00000ABCDEAAA/view"); got != "https://acme.lightning.force.com/lightning/r/Lead/00Q5g00000ABCDEAAA/view" {
		t.Fatalf("absolute path: got %q", got)
	}
	if got := ResolveHref(base, "https://other.example/x"); got != "https://other.example/x" {
		t.Fatalf("absolute url: got %q", got)
	}
	if got := ResolveHref(nil, "relative/path"); got != "relative/path" {
		t.Fatalf("nil base: got %q", got)
	}
}

func TestRecordIDFromLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"https://x/lightning/r/Lead/00Q5g00000ABCDEAAA/view", "00Q5g00000ABCDEAAA", true},
		{"/lightning/r/Account/0015g00000QWERT/view", "0015g00000QWERT", true},
		{"/lightning/r/Lead/short/view", "", false},
		{"https://x/lightning/o/Lead/list", "", false},
	}
	for _, tt := range tests {
		got, ok := RecordIDFromLink(tt.href)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("RecordIDFromLink(%q): want (%q,%v) got (%q,%v)", tt.href, tt.want, tt.ok, got, ok)
		}
	}
}

func TestRecordIDFromURL(t *testing.T) {
	t.Parallel()

	got, ok := RecordIDFromURL("https://x/lightning/r/Opportunity/0065g00000ZZZZZAAA/view")
	if !ok || got != "0065g00000ZZZZZAAA" {
		t.Fatalf("want id got (%q,%v)", got, ok)
	}
	if _, ok := RecordIDFromURL("https://x/lightning/o/Opportunity/list"); ok {
		t.Fatalf("list url should carry no id")
	}
}
