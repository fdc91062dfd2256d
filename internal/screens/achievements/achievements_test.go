package achievements

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
)

func TestAchievements_ShowsUnlocked(t *testing.T) {
	s := New(screen.Deps{})
	st := store.UserStats{QuestionsAnswered: 10}
	cat := stats.AchievementProgress(st)
	st.UnlockedAchievements = []string{cat[0].ID}

	s.Update(loadedMsg{items: stats.AchievementProgress(st)})
	v := s.View(100, 60)
	if !strings.Contains(v, fmt.Sprintf("Achievements  1/%d", len(cat))) {
		t.Fatalf("expected unlocked count in view")
	}
	if !strings.Contains(v, cat[0].Title) {
		t.Fatalf("expected %q listed", cat[0].Title)
	}
}

func TestAchievements_NoStatsService(t *testing.T) {
	s := New(screen.Deps{})
	if msg := s.Init()(); msg != nil {
		t.Fatalf("expected no message without a stats service, got %T", msg)
	}
}
