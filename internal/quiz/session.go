package quiz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/achievement"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/trial"
)

var (
	// ErrFinished is returned by operations on a finished session.
	ErrFinished = errors.New("session finished")
	// ErrNoSelection is returned by Advance when no option is selected.
	ErrNoSelection = errors.New("no option selected")
	// ErrSkipNotAllowed is returned by Skip in exam mode or on the last
	// question.
	ErrSkipNotAllowed = errors.New("skip not allowed")
)

// Result is a finalized attempt.
type Result struct {
	SessionID string
	TopicID   string
	Mode      Mode

	Total        int // questions in the set
	Answered     int
	Correct      int
	WrongAnswers []store.WrongAnswer

	// AccuracyPct is correct/answered and is what the stats average uses.
	AccuracyPct float64
	// CompletionPct is correct/total and decides Passed.
	CompletionPct float64
	Passed        bool

	TimedOut bool
	Elapsed  time.Duration

	Unlocked []achievement.Achievement
	// RecordErr is set when the stats write failed. The result is still
	// valid for display.
	RecordErr error
}

// AdvanceResult reports the outcome of one submitted answer.
type AdvanceResult struct {
	Correct  bool
	Finished bool
	Result   *Result // set when Finished
}

// Feedback is the practice-mode reveal for the current question.
type Feedback struct {
	Selected     int
	CorrectIndex int
	Correct      bool
	Explanation  string
}

// State is a consistent snapshot of a session.
type State struct {
	ID            string
	UserID        string
	TopicID       string
	Mode          Mode
	Position      int
	Total         int
	Score         int
	Answered      int
	WrongAnswers  []store.WrongAnswer
	Current       *question.Question
	Selected      int // -1 when nothing is selected
	TimeRemaining time.Duration
	Finished      bool
	Resumed       bool
	Result        *Result
}

// Session is one quiz attempt. All methods are serialised by an internal
// mutex, so timer ticks and user input may come from different goroutines.
type Session struct {
	mu sync.Mutex

	id      string
	userID  string
	topicID string
	mode    Mode
	engine  *Engine
	log     logrus.FieldLogger

	questions []question.Question // immutable after Start
	order     []int               // permutation of indices into questions
	pos       int
	score     int
	wrong     []store.WrongAnswer
	selected  int

	remaining time.Duration
	startedAt time.Time // start of this run, used for elapsed time
	origStart time.Time // first start, kept across resumes
	resumed   bool

	finished  bool
	finalized bool
	result    *Result

	doneOnce sync.Once
	done     chan struct{}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) UserID() string  { return s.userID }
func (s *Session) TopicID() string { return s.topicID }
func (s *Session) Mode() Mode      { return s.mode }

// Resumed reports whether the session was restored from a saved record.
func (s *Session) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// Current returns the question under the cursor. ok is false once the
// session has finished.
func (s *Session) Current() (q question.Question, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return question.Question{}, false
	}
	return s.current(), true
}

func (s *Session) current() question.Question {
	return s.questions[s.order[s.pos]]
}

// Position returns the zero-based cursor.
func (s *Session) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Total returns the number of questions in the set.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// WrongAnswers returns a copy of the incorrect answers so far.
func (s *Session) WrongAnswers() []store.WrongAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.WrongAnswer(nil), s.wrong...)
}

// QuestionIDs returns the ids in their current order.
func (s *Session) QuestionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionIDs()
}

func (s *Session) questionIDs() []string {
	ids := make([]string, len(s.order))
	for i, idx := range s.order {
		ids[i] = s.questions[idx].ID
	}
	return ids
}

// Selected returns the selected option for the current question.
func (s *Session) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected >= 0
}

// Select chooses option i for the current question and reports whether the
// selection took effect. It is ignored once finished, for an out-of-range
// index, and in practice mode after an option has been chosen.
func (s *Session) Select(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	if i < 0 || i >= len(s.current().Options) {
		return false
	}
	if s.mode == Practice && s.selected >= 0 {
		return false
	}
	s.selected = i
	return true
}

// Reveal returns practice feedback for the selected option.
func (s *Session) Reveal() (Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.mode != Practice || s.selected < 0 {
		return Feedback{}, false
	}
	q := s.current()
	return Feedback{
		Selected:     s.selected,
		CorrectIndex: q.CorrectIndex,
		Correct:      q.IsCorrect(s.selected),
		Explanation:  q.Explanation,
	}, true
}

// Advance submits the selected option. When the trial gate runs out with
// questions still left, the session is finalized with the answers so far
// and Advance returns trial.ErrAccessDenied alongside the result.
func (s *Session) Advance(ctx context.Context) (AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return AdvanceResult{}, ErrFinished
	}
	if s.selected < 0 {
		return AdvanceResult{}, ErrNoSelection
	}

	status, gated := s.recordAnswer(ctx)
	correct := s.scoreSelected()

	if s.pos == len(s.order)-1 {
		res := s.finalize(ctx, false, false)
		return AdvanceResult{Correct: correct, Finished: true, Result: res}, nil
	}

	if gated && !status.CanAccess() {
		s.log.WithField("used", status.Used).Info("trial limit reached mid-session")
		res := s.finalize(ctx, false, true)
		return AdvanceResult{Correct: correct, Finished: true, Result: res}, trial.ErrAccessDenied
	}

	s.pos++
	s.selected = -1
	if s.mode == Practice {
		s.persist(ctx)
	}
	return AdvanceResult{Correct: correct}, nil
}

// recordAnswer bumps the trial counter. gated is false without a gate.
func (s *Session) recordAnswer(ctx context.Context) (status trial.Status, gated bool) {
	if s.engine.gate == nil {
		return trial.Status{}, false
	}
	return s.engine.gate.RecordAnswer(ctx, s.userID), true
}

// scoreSelected scores the selected option against the current question.
func (s *Session) scoreSelected() bool {
	q := s.current()
	if q.IsCorrect(s.selected) {
		s.score++
		return true
	}
	s.wrong = append(s.wrong, store.WrongAnswer{QuestionID: q.ID, SelectedIndex: s.selected})
	return false
}

// Skip moves the current practice question to the end of the order.
func (s *Session) Skip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrFinished
	}
	if s.mode != Practice || s.pos >= len(s.order)-1 {
		return ErrSkipNotAllowed
	}

	cur := s.order[s.pos]
	copy(s.order[s.pos:], s.order[s.pos+1:])
	s.order[len(s.order)-1] = cur
	s.selected = -1

	s.persist(ctx)
	return nil
}

// Quit ends the session. With nothing answered it records nothing, leaves
// any saved practice session in place and returns a nil Result. Otherwise
// the answered questions are finalized and the rest are not counted.
func (s *Session) Quit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return s.result, nil
	}
	if s.finished {
		return nil, nil
	}
	if s.score+len(s.wrong) == 0 {
		s.finished = true
		s.stop()
		s.log.Info("session abandoned before any answer")
		return nil, nil
	}
	return s.finalize(ctx, false, false), nil
}

// Tick advances the exam countdown by one second and reports whether the
// session finished on this tick. A selected option is scored before the
// session finalizes on timeout. Practice sessions ignore ticks.
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished || s.mode != Exam {
		return false
	}
	s.remaining -= time.Second
	if s.remaining > 0 {
		return false
	}
	s.remaining = 0

	if s.selected >= 0 {
		s.recordAnswer(ctx)
		s.scoreSelected()
	}
	s.finalize(ctx, true, false)
	return true
}

// TimeRemaining returns the exam countdown. Always zero in practice mode.
func (s *Session) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// RunTimer ticks the exam clock once a second until the session finishes,
// is closed, or ctx is cancelled. It returns immediately for practice.
func (s *Session) RunTimer(ctx context.Context) {
	if s.mode != Exam {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if s.Tick(ctx) {
				return
			}
		}
	}
}

// Done is closed when the session finishes or is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the timer without finalizing. Later ticks are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.stop()
}

func (s *Session) stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Finished reports whether the session has ended.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Result returns the finalized result, or nil.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:            s.id,
		UserID:        s.userID,
		TopicID:       s.topicID,
		Mode:          s.mode,
		Position:      s.pos,
		Total:         len(s.order),
		Score:         s.score,
		Answered:      s.score + len(s.wrong),
		WrongAnswers:  append([]store.WrongAnswer(nil), s.wrong...),
		Selected:      s.selected,
		TimeRemaining: s.remaining,
		Finished:      s.finished,
		Resumed:       s.resumed,
		Result:        s.result,
	}
	if !s.finished {
		q := s.current()
		st.Current = &q
	}
	return st
}

// finalize closes the session and records the attempt. The finalized latch
// is set before any collaborator is called, so a repeat call returns the
// first result without writing again. lockedOut keeps a practice session
// resumable from the next question once access is restored. Callers hold s.mu.
func (s *Session) finalize(ctx context.Context, timedOut, lockedOut bool) *Result {
	if s.finalized {
		return s.result
	}
	s.finalized = true
	s.finished = true
	s.selected = -1
	s.stop()

	answered := s.score + len(s.wrong)
	res := &Result{
		SessionID:    s.id,
		TopicID:      s.topicID,
		Mode:         s.mode,
		Total:        len(s.order),
		Answered:     answered,
		Correct:      s.score,
		WrongAnswers: append([]store.WrongAnswer(nil), s.wrong...),
		TimedOut:     timedOut,
		Elapsed:      s.engine.now().Sub(s.startedAt),
	}
	if answered > 0 {
		res.AccuracyPct = float64(s.score) / float64(answered) * 100
	}
	if res.Total > 0 {
		res.CompletionPct = float64(s.score) / float64(res.Total) * 100
	}
	res.Passed = res.CompletionPct >= s.engine.cfg.PassThreshold
	s.result = res

	if s.engine.recorder != nil && answered > 0 {
		unlocked, err := s.engine.recorder.RecordResult(ctx, s.userID, stats.Result{
			AccuracyPct:   res.AccuracyPct,
			QuestionCount: answered,
			IsExam:        s.mode == Exam,
			TopicID:       s.topicID,
			Correct:       s.score,
			Total:         res.Total,
			Elapsed:       res.Elapsed,
			SessionID:     s.id,
			Mode:          string(s.mode),
		})
		if err != nil {
			s.log.WithError(err).Warn("failed to record quiz result")
			res.RecordErr = err
		}
		res.Unlocked = unlocked
	}

	if s.mode == Practice && s.engine.sessions != nil {
		if lockedOut {
			s.saveAfterLockout(ctx)
		} else if err := s.engine.sessions.Clear(ctx, s.userID); err != nil {
			s.log.WithError(err).Warn("failed to clear saved practice session")
		}
	}

	s.log.WithFields(logrus.Fields{
		"answered": answered,
		"correct":  s.score,
		"total":    res.Total,
		"passed":   res.Passed,
	}).Info("session finalized")
	return res
}

// saveAfterLockout saves the practice record positioned after the last
// answered question. The answers so far were just recorded, so the record
// carries no score or wrong answers and a resume does not count them twice.
// Callers hold s.mu.
func (s *Session) saveAfterLockout(ctx context.Context) {
	rec := store.PracticeSession{
		TopicID:      s.topicID,
		QuestionIDs:  s.questionIDs(),
		CurrentIndex: s.pos + 1,
		StartTime:    s.origStart,
	}
	if err := s.engine.sessions.Save(ctx, s.userID, rec); err != nil {
		s.log.WithError(err).Warn("failed to save practice session after trial lockout")
	}
}

// persist saves the practice record. Failures are logged and the session
// carries on. Callers hold s.mu.
func (s *Session) persist(ctx context.Context) {
	if s.engine.sessions == nil {
		return
	}
	rec := store.PracticeSession{
		TopicID:      s.topicID,
		QuestionIDs:  s.questionIDs(),
		CurrentIndex: s.pos,
		Score:        s.score,
		WrongAnswers: append([]store.WrongAnswer(nil), s.wrong...),
		StartTime:    s.origStart,
	}
	if err := s.engine.sessions.Save(ctx, s.userID, rec); err != nil {
		s.log.WithError(err).Warn("failed to save practice session")
	}
}
