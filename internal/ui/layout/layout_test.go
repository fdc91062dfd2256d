package layout

import (
	"strings"
	"testing"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{60, "1:00"},
		{3600, "60:00"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.secs); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestRenderHeader_HidesRemainingWhenNegative(t *testing.T) {
	h := RenderHeader("Home", HeaderInfo{Streak: 3, AverageScore: 82, Remaining: -1}, 100)
	if strings.Contains(h, "free left") {
		t.Fatal("expected no free counter for entitled users")
	}
	if !strings.Contains(h, "Avg 82%") {
		t.Fatalf("expected average in header, got %q", h)
	}

	h = RenderHeader("Home", HeaderInfo{Remaining: 7}, 100)
	if !strings.Contains(h, "7 free left") {
		t.Fatalf("expected free counter, got %q", h)
	}
}

func TestIsTooSmall(t *testing.T) {
	if !IsTooSmall(MinWidth-1, MinHeight) {
		t.Error("expected too small")
	}
	if IsTooSmall(MinWidth, MinHeight) {
		t.Error("expected large enough")
	}
}
