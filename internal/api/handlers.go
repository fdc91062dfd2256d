package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/trial"
)

var errNotFound = errors.New("session not found")

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)

	topics, err := s.deps.Source.Topics(r.Context())
	if err != nil {
		log.WithError(err).Error("list topics")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}
	out := make([]topicView, 0, len(topics))
	for _, t := range topics {
		qs, err := s.deps.Source.Questions(r.Context(), t.ID)
		if err != nil {
			log.WithError(err).WithField("topic_id", t.ID).Warn("count topic questions")
		}
		out = append(out, topicView{ID: t.ID, Name: t.Name, Class: string(t.Class), Questions: len(qs)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	user := userID(r)

	st, err := s.deps.Stats.Load(r.Context(), user)
	if err != nil {
		log.WithError(err).Error("load stats")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}
	v := statsView{UserStats: st, Topics: []topicStatsView{}}

	summaries, err := s.deps.Stats.TopicBreakdown(r.Context(), user)
	if err != nil {
		log.WithError(err).Warn("topic breakdown")
	}
	for _, ts := range summaries {
		v.Topics = append(v.Topics, topicStatsView{
			TopicID:  ts.TopicID,
			Attempts: ts.Attempts,
			Answered: ts.Answered,
			Correct:  ts.Correct,
			Accuracy: ts.Accuracy(),
		})
	}
	if s.deps.Gate != nil {
		v.Trial = newTrialView(s.deps.Gate.Check(r.Context(), user))
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listAchievements(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stats.Load(r.Context(), userID(r))
	if err != nil {
		logging.FromContext(r.Context(), s.log).WithError(err).Error("load stats")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}
	writeJSON(w, http.StatusOK, newAchievementViews(stats.AchievementProgress(st)))
}

func (s *Server) getTrial(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gate == nil {
		writeJSON(w, http.StatusOK, &trialView{Entitled: true, CanAccess: true})
		return
	}
	writeJSON(w, http.StatusOK, newTrialView(s.deps.Gate.Check(r.Context(), userID(r))))
}

func (s *Server) getExplanation(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	id := chi.URLParam(r, "id")

	selected := -1
	if v := r.URL.Query().Get("selected"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid selected %q", v))
			return
		}
		selected = n
	}

	q, ok, err := question.FindQuestion(r.Context(), s.deps.Source, id)
	switch {
	case err != nil:
		log.WithError(err).Error("find question")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	case !ok:
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("question %q not found", id))
		return
	}

	if s.deps.Explain == nil {
		if q.Explanation == "" {
			writeError(w, http.StatusServiceUnavailable, "unavailable", explain.ErrUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": q.Explanation, "source": string(explain.SourceBank)})
		return
	}

	exp, err := s.deps.Explain.Explain(r.Context(), q, selected)
	if err != nil {
		if !errors.Is(err, explain.ErrUnavailable) {
			log.WithError(err).WithField("question_id", id).Warn("explain question")
		}
		writeError(w, http.StatusServiceUnavailable, "unavailable", explain.ErrUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": exp.Text, "source": string(exp.Source)})
}

type createSessionRequest struct {
	TopicID string `json:"topicId"`
	Mode    string `json:"mode"`
	Resume  bool   `json:"resume"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid request body"))
		return
	}
	mode := quiz.Practice
	if req.Mode != "" {
		m, err := quiz.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		mode = m
	}

	sess, err := s.deps.Engine.Start(r.Context(), quiz.StartInput{
		UserID:  userID(r),
		TopicID: req.TopicID,
		Mode:    mode,
		Resume:  req.Resume,
	})
	if err != nil {
		if writeEngineError(w, err) {
			return
		}
		log.WithError(err).Error("start session")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}

	s.host(sess)
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(h.sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}
	h.sess.Close()
	s.drop(h.sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	Option int `json:"option"`
}

func (s *Server) selectOption(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid request body"))
		return
	}
	if h.sess.Finished() {
		writeEngineError(w, quiz.ErrFinished)
		return
	}
	if !h.sess.Select(req.Option) {
		writeError(w, http.StatusConflict, "selection_ignored", fmt.Errorf("option %d not accepted", req.Option))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(h.sess))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}

	_, err := h.sess.Advance(r.Context())
	exhausted := errors.Is(err, trial.ErrAccessDenied)
	if err != nil && !exhausted {
		if writeEngineError(w, err) {
			return
		}
		logging.FromContext(r.Context(), s.log).WithError(err).Error("advance session")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}

	v := newSessionView(h.sess)
	v.TrialExhausted = exhausted
	if v.Finished {
		s.stopTimer(h)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}
	if err := h.sess.Skip(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(h.sess))
}

func (s *Server) quit(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errNotFound)
		return
	}
	if _, err := h.sess.Quit(r.Context()); err != nil {
		logging.FromContext(r.Context(), s.log).WithError(err).Error("quit session")
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal server error"))
		return
	}
	s.stopTimer(h)
	writeJSON(w, http.StatusOK, newSessionView(h.sess))
}

// stopTimer cancels the exam timer and starts the eviction clock. The
// finished session stays queryable for FinishedTTL or until deleted.
func (s *Server) stopTimer(h *hosted) {
	h.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.finishedAt.IsZero() {
		h.finishedAt = s.now()
	}
}
