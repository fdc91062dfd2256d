// Package quiz runs practice and exam sessions: picking the question set,
// collecting answers, scoring, the exam countdown, resuming practice, and
// handing the finished attempt to the stats recorder.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/achievement"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/trial"
)

// ErrNoQuestions is returned by Start when the source has nothing for the
// requested topic.
var ErrNoQuestions = errors.New("no questions available")

// Recorder receives finished attempts.
type Recorder interface {
	RecordResult(ctx context.Context, userID string, r stats.Result) ([]achievement.Achievement, error)
}

// SessionStore persists the one resumable practice session per user.
type SessionStore interface {
	Save(ctx context.Context, userID string, sess store.PracticeSession) error
	Load(ctx context.Context, userID string) (*store.PracticeSession, error)
	Clear(ctx context.Context, userID string) error
}

// Gatekeeper is the trial gate as seen by the engine.
type Gatekeeper interface {
	Check(ctx context.Context, userID string) trial.Status
	RecordAnswer(ctx context.Context, userID string) trial.Status
}

// Options configures an Engine. Source is required; every other field may
// be left zero.
type Options struct {
	Source   question.Source
	Stats    Recorder
	Sessions SessionStore
	Gate     Gatekeeper
	Config   Config
	Rand     *rand.Rand
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Engine starts sessions. It is safe for concurrent use.
type Engine struct {
	source   question.Source
	recorder Recorder
	sessions SessionStore
	gate     Gatekeeper
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewEngine builds an Engine from opts.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("quiz engine: question source is required")
	}
	e := &Engine{
		source:   opts.Source,
		recorder: opts.Stats,
		sessions: opts.Sessions,
		gate:     opts.Gate,
		cfg:      opts.Config.withDefaults(),
		log:      opts.Log,
		now:      opts.Now,
		rand:     opts.Rand,
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// StartInput describes the session to start.
type StartInput struct {
	UserID  string
	TopicID string // empty pools every topic
	Mode    Mode
	// Resume restores the user's saved practice session for TopicID when
	// there is one. Ignored for exams.
	Resume bool
}

// Start checks the trial gate, then builds or restores the question set.
func (e *Engine) Start(ctx context.Context, in StartInput) (*Session, error) {
	if in.Mode == "" {
		in.Mode = Practice
	}
	if _, err := ParseMode(string(in.Mode)); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx, e.log).WithFields(logrus.Fields{
		"user_id":  in.UserID,
		"topic_id": in.TopicID,
		"mode":     in.Mode,
	})

	if e.gate != nil {
		if st := e.gate.Check(ctx, in.UserID); !st.CanAccess() {
			log.WithField("used", st.Used).Info("session start refused by trial gate")
			return nil, trial.ErrAccessDenied
		}
	}

	qs, err := e.source.Questions(ctx, in.TopicID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}

	s := &Session{
		id:        uuid.NewString(),
		userID:    in.UserID,
		topicID:   in.TopicID,
		mode:      in.Mode,
		engine:    e,
		selected:  -1,
		startedAt: e.now(),
		done:      make(chan struct{}),
	}
	s.log = log.WithField("session_id", s.id)

	if in.Mode == Practice && in.Resume && e.sessions != nil {
		if e.restore(ctx, s, qs) {
			s.log.WithField("position", s.pos).Info("practice session resumed")
			return s, nil
		}
	}

	s.questions = e.pick(ctx, in, qs)
	s.order = make([]int, len(s.questions))
	for i := range s.order {
		s.order[i] = i
	}
	s.origStart = s.startedAt
	if in.Mode == Exam {
		s.remaining = e.cfg.ExamDuration
	}
	if in.Mode == Practice {
		s.persist(ctx)
	}

	s.log.WithField("questions", len(s.questions)).Info("session started")
	return s, nil
}

// pick shuffles qs and trims it to the session size.
func (e *Engine) pick(ctx context.Context, in StartInput, qs []question.Question) []question.Question {
	out := make([]question.Question, len(qs))
	copy(out, qs)

	e.randMu.Lock()
	e.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	e.randMu.Unlock()

	size := len(out)
	switch {
	case in.TopicID == "":
		size = e.cfg.MixedSize
	case in.Mode == Exam:
		size = e.examSize(ctx, in.TopicID)
	}
	if size < len(out) {
		out = out[:size]
	}
	return out
}

func (e *Engine) examSize(ctx context.Context, topicID string) int {
	t, ok, err := question.FindTopic(ctx, e.source, topicID)
	if err != nil {
		logging.FromContext(ctx, e.log).WithError(err).Warn("topic lookup failed; using main exam size")
	}
	if ok && t.Class == question.ClassEndorsement {
		return e.cfg.ExamSizeEndorsement
	}
	return e.cfg.ExamSizeMain
}

// restore loads the saved practice session into s. It reports false when
// there is nothing usable to resume, leaving s untouched.
func (e *Engine) restore(ctx context.Context, s *Session, qs []question.Question) bool {
	rec, err := e.sessions.Load(ctx, s.userID)
	if err != nil {
		s.log.WithError(err).Warn("failed to load saved practice session; starting fresh")
		return false
	}
	if rec == nil || rec.TopicID != s.topicID {
		return false
	}

	byID := make(map[string]question.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	var (
		kept []question.Question
		pos  int
	)
	seen := make(map[string]bool, len(rec.QuestionIDs))
	for i, id := range rec.QuestionIDs {
		q, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, q)
		if i < rec.CurrentIndex {
			pos++
		}
	}
	if len(kept) == 0 || pos >= len(kept) {
		if len(kept) == 0 {
			s.log.Warn("saved practice session references no known questions; starting fresh")
		}
		return false
	}

	wrong := make([]store.WrongAnswer, 0, len(rec.WrongAnswers))
	for _, w := range rec.WrongAnswers {
		if _, ok := byID[w.QuestionID]; ok {
			wrong = append(wrong, w)
		}
	}
	score := min(max(rec.Score, 0), pos-len(wrong))
	if score < 0 {
		wrong = wrong[:pos]
		score = 0
	}

	s.questions = kept
	s.order = make([]int, len(kept))
	for i := range s.order {
		s.order[i] = i
	}
	s.pos = pos
	s.score = score
	s.wrong = wrong
	s.resumed = true
	s.origStart = rec.StartTime
	if s.origStart.IsZero() {
		s.origStart = s.startedAt
	}
	return true
}
