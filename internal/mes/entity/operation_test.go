package entity

import "testing"

func TestIsTerminalOpStatus(t *testing.T) {
	cases := map[string]bool{
		OpStatusQueue:      false,
		OpStatusInProgress: false,
		OpStatusBlocked:    false,
		OpStatusCompleted:  true,
		OpStatusCancelled:  true,
		LegacyOpComplete:   true,
		"":                 false,
		"unknown":          false,
	}
	for status, want := range cases {
		if got := IsTerminalOpStatus(status); got != want {
			t.Errorf("IsTerminalOpStatus(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestNormalizeOpStatus(t *testing.T) {
	if got := NormalizeOpStatus(LegacyOpComplete); got != OpStatusCompleted {
		t.Errorf("legacy complete should normalize to completed, got %q", got)
	}
	if got := NormalizeOpStatus(OpStatusQueue); got != OpStatusQueue {
		t.Errorf("non-legacy statuses pass through, got %q", got)
	}
}
