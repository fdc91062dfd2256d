// Package api serves quiz sessions over HTTP. Sessions live in memory for
// the lifetime of the process; stats, the trial counter and saved practice
// sessions are persisted through the same services the terminal UI uses.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/trial"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// DefaultFinishedTTL is how long a finished session stays queryable.
const DefaultFinishedTTL = 10 * time.Minute

// Deps are the collaborators a Server needs. Gate and Explain are optional.
type Deps struct {
	Engine  *quiz.Engine
	Stats   *stats.Service
	Source  question.Source
	Gate    *trial.Gate
	Explain *explain.Service
	Log     logrus.FieldLogger

	// DefaultUser is used when a request has no UserHeader.
	DefaultUser    string
	AllowedOrigins []string

	// FinishedTTL bounds how long finished sessions are kept before they
	// are evicted. Zero means DefaultFinishedTTL.
	FinishedTTL time.Duration
	Now         func() time.Time
}

// Server hosts sessions and answers API requests.
type Server struct {
	deps Deps
	log  logrus.FieldLogger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*hosted
}

type hosted struct {
	sess       *quiz.Session
	cancel     context.CancelFunc // stops the exam timer
	finishedAt time.Time          // first time the session was seen finished
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	if deps.DefaultUser == "" {
		deps.DefaultUser = "guest"
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	if deps.FinishedTTL <= 0 {
		deps.FinishedTTL = DefaultFinishedTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{deps: deps, log: deps.Log, now: deps.Now, sessions: make(map[string]*hosted)}
}

// Handler returns the HTTP handler with routing, request logging and CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/topics", s.listTopics)
	r.Get("/stats", s.getStats)
	r.Get("/achievements", s.listAchievements)
	r.Get("/trial", s.getTrial)
	r.Get("/questions/{id}/explanation", s.getExplanation)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/select", s.selectOption)
			r.Post("/advance", s.advance)
			r.Post("/skip", s.skip)
			r.Post("/quit", s.quit)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", UserHeader},
	})
	return c.Handler(r)
}

// Shutdown stops every running exam timer. Unfinished sessions are
// abandoned without recording.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.sessions {
		h.cancel()
		h.sess.Close()
		delete(s.sessions, id)
	}
}

// requestLogger puts a logger tagged with the request and user ids in the
// request context and logs each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			user = s.deps.DefaultUser
		}
		log := s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"user_id":    user,
		})
		ctx := logging.WithContext(r.Context(), log)
		ctx = context.WithValue(ctx, userKey{}, user)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": ww.Status(),
		}).Debug("request")
	})
}

type userKey struct{}

func userID(r *http.Request) string {
	u, _ := r.Context().Value(userKey{}).(string)
	return u
}

func (s *Server) host(sess *quiz.Session) {
	ctx, cancel := context.WithCancel(logging.WithContext(context.Background(), s.log))
	s.mu.Lock()
	s.evictFinished()
	s.sessions[sess.ID()] = &hosted{sess: sess, cancel: cancel}
	s.mu.Unlock()

	if sess.Mode() == quiz.Exam {
		go func() {
			defer cancel()
			sess.RunTimer(ctx)
		}()
	}
}

// lookup returns the caller's session. Sessions of other users are
// reported as missing.
func (s *Server) lookup(r *http.Request) (*hosted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictFinished()
	h, ok := s.sessions[chi.URLParam(r, "id")]
	if !ok || h.sess.UserID() != userID(r) {
		return nil, false
	}
	return h, true
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions[id]; ok {
		h.cancel()
		delete(s.sessions, id)
	}
}

// evictFinished drops sessions that finished more than FinishedTTL ago.
// A session's clock starts the first time a sweep sees it finished, which
// covers exams that time out on their own. Callers hold s.mu.
func (s *Server) evictFinished() {
	now := s.now()
	for id, h := range s.sessions {
		if !h.sess.Finished() {
			continue
		}
		if h.finishedAt.IsZero() {
			h.finishedAt = now
			continue
		}
		if now.Sub(h.finishedAt) >= s.deps.FinishedTTL {
			h.cancel()
			delete(s.sessions, id)
		}
	}
}
