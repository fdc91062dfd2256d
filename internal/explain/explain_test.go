package explain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdlprep/cdlprep/internal/llm"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/store"
)

func testQuestion() question.Question {
	return question.Question{
		ID:           "ab-002",
		TopicID:      "air_brakes",
		Text:         "The air compressor governor controls:",
		Options:      []string{"When the compressor pumps air", "The pedal", "The gauge"},
		CorrectIndex: 0,
	}
}

func openCache(t *testing.T) store.ExplanationRepo {
	t.Helper()
	s, err := store.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.ExplanationRepo()
}

func TestExplain_BankExplanationWins(t *testing.T) {
	mock := llm.NewMockProvider()
	svc := NewService(mock, nil, nil)

	q := testQuestion()
	q.Explanation = "It sets cut-in and cut-out pressure."
	got, err := svc.Explain(context.Background(), q, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceBank, got.Source)
	assert.Equal(t, 0, mock.CallCount())
}

func TestExplain_GeneratesAndCaches(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"explanation":"The governor tells the compressor when to pump."}`),
	})
	cache := openCache(t)
	svc := NewService(mock, cache, nil)
	ctx := context.Background()

	got, err := svc.Explain(ctx, testQuestion(), 2)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, got.Source)
	assert.Equal(t, "The governor tells the compressor when to pump.", got.Text)

	require.Len(t, mock.Calls, 1)
	prompt := mock.Calls[0].Messages[0].Content
	assert.True(t, strings.Contains(prompt, "Correct answer: A."), prompt)
	assert.True(t, strings.Contains(prompt, "The student chose: C."), prompt)
	assert.NotNil(t, mock.Calls[0].Schema)

	again, err := svc.Explain(ctx, testQuestion(), 2)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, got.Text, again.Text)
	assert.Equal(t, 1, mock.CallCount(), "cached explanation is not regenerated")
}

func TestExplain_NoProvider(t *testing.T) {
	svc := NewService(nil, nil, nil)
	_, err := svc.Explain(context.Background(), testQuestion(), 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExplain_ProviderError(t *testing.T) {
	svc := NewService(llm.NewMockProvider(), nil, nil)
	_, err := svc.Explain(context.Background(), testQuestion(), 0)
	require.Error(t, err)
	var unavailable *llm.ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestBuildPrompt_CorrectSelectionOmitsChoice(t *testing.T) {
	p := buildPrompt(testQuestion(), 0)
	assert.NotContains(t, p, "The student chose")
	assert.Contains(t, p, "B. The pedal")
}
