package model

import "testing"

func TestParseMemoryString(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"1k", 1024, false},
		{"1kb", 1024, false},
		{"2m", 2 * 1024 * 1024, false},
		{"1g", 1024 * 1024 * 1024, false},
		{"1t", 1024 * 1024 * 1024 * 1024, false},
		{"1.5g", int64(1.5 * 1024 * 1024 * 1024), false},
		{"", 0, true},
		{"5xyz", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMemoryString(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseMemoryString(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMemoryString(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMemoryString(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"PT1H", secondsPerHour, false},
		{"PT30M", 30 * 60, false},
		{"PT1H30M", secondsPerHour + 30*60, false},
		{"P1D", secondsPerDay, false},
		{"P1W", secondsPerWeek, false},
		{"P1Y", secondsPerYear, false},
		{"PT10S", 10, false},
		{"PT1.5S", 1, false},
		{"", 0, true},
		{"P", 0, true},
		{"PT", 0, true},
		{"P1W1D", 0, true},
		{"not-a-duration", 0, true},
	}
	for _, c := range cases {
		got, err := ParseISO8601Duration(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseISO8601Duration(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseISO8601Duration(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseISO8601Duration(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
