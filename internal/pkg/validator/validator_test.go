package validator

import (
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidClock(t *testing.T) {
	valid := []string{"00:00", "09:30", "22:00", "23:59"}
	invalid := []string{"24:00", "9:30", "12:60", "12:5", "12-30", "", "noon"}
	for _, clock := range valid {
		if !IsValidClock(clock) {
			t.Errorf("IsValidClock(%q) = false, want true", clock)
		}
	}
	for _, clock := range invalid {
		if IsValidClock(clock) {
			t.Errorf("IsValidClock(%q) = true, want false", clock)
		}
	}
}

func TestClockToMinutes(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"22:00", 1320, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ClockToMinutes(c.input)
		if got != c.want || ok != c.ok {
			t.Errorf("ClockToMinutes(%q) = (%d, %v), want (%d, %v)", c.input, got, ok, c.want, c.ok)
		}
	}
}

func TestIsValidTimezone(t *testing.T) {
	valid := []string{"UTC", "Asia/Riyadh", "Asia/Jakarta"}
	invalid := []string{"", "Not/AZone", "  "}
	for _, tz := range valid {
		if !IsValidTimezone(tz) {
			t.Errorf("IsValidTimezone(%q) = false, want true", tz)
		}
	}
	for _, tz := range invalid {
		if IsValidTimezone(tz) {
			t.Errorf("IsValidTimezone(%q) = true, want false", tz)
		}
	}
}

func TestIsValidLatitudeLongitude(t *testing.T) {
	if !IsValidLatitude(24.7136) || !IsValidLongitude(46.6753) {
		t.Error("expected Riyadh coordinates to validate")
	}
	if IsValidLatitude(90.1) || IsValidLatitude(-90.1) {
		t.Error("latitude outside [-90, 90] must not validate")
	}
	if IsValidLongitude(180.1) || IsValidLongitude(-180.1) {
		t.Error("longitude outside [-180, 180] must not validate")
	}
}
