package account

import (
	"testing"
	"time"
)

func TestParseBanMode(t *testing.T) {
	tests := []struct {
		value    string
		expected BanMode
		ok       bool
	}{
		{"account", BanAccount, true},
		{"Character", BanCharacter, true},
		{"IP", BanIP, true},
		{"host", 0, false},
	}

	for _, test := range tests {
		mode, ok := ParseBanMode(test.value)
		if ok != test.ok || (ok && mode != test.expected) {
			t.Errorf("ParseBanMode(%s): expected %v %v, got %v %v", test.value, test.expected, test.ok, mode, ok)
		}
	}
}

func TestBanActiveAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		ban      Ban
		expected bool
	}{
		{"permanent", Ban{Active: true}, true},
		{"running", Ban{Active: true, End: now.Add(time.Hour)}, true},
		{"expired", Ban{Active: true, End: now.Add(-time.Hour)}, false},
		{"lifted", Ban{Active: false}, false},
	}

	for _, test := range tests {
		if result := test.ban.ActiveAt(now); result != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, result)
		}
	}
}
