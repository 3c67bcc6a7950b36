package utils

import "testing"

func TestMatchModule(t *testing.T) {
	cases := []struct {
		id      string
		pattern string
		want    bool
	}{
		{"invoicing", "invoicing", true},
		{"invoicing", "crm", false},
		{"anything.at.all", "*", true},
		{"finance.ledger", "finance.*", true},
		{"finance.ledger.close", "finance.*", true},
		{"finance", "finance.*", true},
		{"financier", "finance.*", false},
		{"reports.monthly", "reports.month*", true},
		{"reports.monthly", "reports.week*", false},
		{"a.b.c", "a.*.c", true},
		{"a.b", "a.*.c", false},
	}
	for _, tc := range cases {
		if got := MatchModule(tc.id, tc.pattern); got != tc.want {
			t.Fatalf("MatchModule(%q, %q) = %v, want %v", tc.id, tc.pattern, got, tc.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"invoicing", "finance.*"}
	if !MatchAny("finance.ledger", patterns) {
		t.Fatalf("expected subtree match")
	}
	if MatchAny("payroll", patterns) {
		t.Fatalf("expected no match")
	}
	if MatchAny("anything", nil) {
		t.Fatalf("empty set matches nothing")
	}
}
