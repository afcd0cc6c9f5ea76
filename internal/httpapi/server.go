package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/brianfdo/signlearner/internal/globaltime"
	"github.com/brianfdo/signlearner/internal/langdetect"
	"github.com/brianfdo/signlearner/internal/logging"
	"github.com/brianfdo/signlearner/internal/orchestrator"
)

const (
	defaultMaxSessions = 1000
	defaultSessionTTL  = 30 * time.Minute
	maxInputRunes      = 2000
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxSessions     int
	Defaults        orchestrator.RequestOptions
	HeartbeatEvery  time.Duration

	// SessionTTL closes sessions that saw no request and hold no event stream
	// for this long. ReapEvery is how often Start checks.
	SessionTTL time.Duration
	ReapEvery  time.Duration

	// DetectLanguage returns the ISO 639-1 code of text, or "" when unsure.
	DetectLanguage func(text string) string
}

// Server exposes orchestrator sessions over HTTP.
type Server struct {
	backend  orchestrator.Backend
	logger   zerolog.Logger
	opts     Options
	sessions *sessionRegistry
}

type sessionView struct {
	SessionID string                      `json:"session_id"`
	CreatedAt time.Time                   `json:"created_at"`
	Defaults  orchestrator.RequestOptions `json:"defaults"`
	State     orchestrator.State          `json:"state"`
}

type acceptedView struct {
	SessionID        string             `json:"session_id"`
	State            orchestrator.State `json:"state"`
	DetectedLanguage string             `json:"detected_language,omitempty"`
}

type translateBody struct {
	Text string `json:"text"`
}

type lessonBody struct {
	Text       string `json:"text"`
	Age        int    `json:"age"`
	Experience string `json:"experience"`
	Mode       string `json:"mode"`
}

func NewServer(backend orchestrator.Backend, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	heartbeat := opts.HeartbeatEvery
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	reapEvery := opts.ReapEvery
	if reapEvery <= 0 {
		reapEvery = min(sessionTTL/2, time.Minute)
		if reapEvery <= 0 {
			reapEvery = sessionTTL
		}
	}
	detect := opts.DetectLanguage
	if detect == nil {
		detect = langdetect.DetectISO6391
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	defaults := opts.Defaults
	if defaults == (orchestrator.RequestOptions{}) {
		defaults = orchestrator.DefaultOptions()
	}

	s := &Server{
		backend: backend,
		logger:  logging.Component(logger, "httpapi"),
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  origins,
			MaxSessions:     maxSessions,
			Defaults:        defaults,
			HeartbeatEvery:  heartbeat,
			SessionTTL:      sessionTTL,
			ReapEvery:       reapEvery,
			DetectLanguage:  detect,
		},
	}
	s.sessions = newSessionRegistry(maxSessions, func() *orchestrator.Orchestrator {
		return orchestrator.New(s.backend,
			orchestrator.WithLogger(logging.Component(logger, "orchestrator")),
			orchestrator.WithDefaults(s.opts.Defaults),
		)
	})
	return s
}

// Handler builds the echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		MaxAge:       3600,
	}))
	e.Use(logging.RequestLogger(s.logger))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/translate", s.handleTranslate)
	api.POST("/sessions/:id/lessons", s.handleLesson)
	api.GET("/sessions/:id/events", s.handleEvents)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.backend == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go s.reapLoop(ctx)

	go func() {
		<-ctx.Done()
		// Closing sessions ends open event streams so Shutdown can drain.
		s.sessions.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("signlearner session host started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("signlearner session host stopped")
	return nil
}

// Close ends every open session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ReapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapIdleSessions()
		}
	}
}

// reapIdleSessions closes abandoned sessions and returns how many it closed.
func (s *Server) reapIdleSessions() int {
	ids := s.sessions.reapIdle(s.opts.SessionTTL)
	for _, id := range ids {
		s.logger.Info().Str("session_id", id).Dur("ttl", s.opts.SessionTTL).Msg("idle session closed")
	}
	return len(ids)
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service":  "signlearner",
		"sessions": s.sessions.count(),
		"time":     globaltime.UTC(),
	})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	sess, err := s.sessions.create()
	if err != nil {
		if errors.Is(err, errSessionLimit) {
			return errorWithStatus(c, http.StatusServiceUnavailable, "Too many open sessions")
		}
		s.logger.Error().Err(err).Msg("create session failed")
		return internalError(c, "Failed to create session")
	}

	s.logger.Info().Str("session_id", sess.id).Msg("session created")
	return successWithStatus(c, http.StatusCreated, sessionView{
		SessionID: sess.id,
		CreatedAt: sess.createdAt,
		Defaults:  sess.orch.Defaults(),
		State:     sess.orch.State(),
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return failNotFound(c, "Session not found")
	}
	return success(c, sessionView{
		SessionID: sess.id,
		CreatedAt: sess.createdAt,
		Defaults:  sess.orch.Defaults(),
		State:     sess.orch.State(),
	})
}

func (s *Server) handleTranslate(c echo.Context) error {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return failNotFound(c, "Session not found")
	}

	var body translateBody
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if fieldErrors := validateText(body.Text); len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	language := s.languageHint(sess.id, body.Text)
	sess.orch.Translate(body.Text)
	return successWithStatus(c, http.StatusAccepted, acceptedView{
		SessionID:        sess.id,
		State:            sess.orch.State(),
		DetectedLanguage: language,
	})
}

func (s *Server) handleLesson(c echo.Context) error {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return failNotFound(c, "Session not found")
	}

	var body lessonBody
	if err := c.Bind(&body); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	fieldErrors := validateText(body.Text)
	opts := orchestrator.RequestOptions{Age: body.Age}
	if body.Age < 0 {
		fieldErrors["age"] = "must be a positive integer"
	}
	if raw := strings.TrimSpace(body.Experience); raw != "" {
		experience, err := orchestrator.ParseExperience(raw)
		if err != nil {
			fieldErrors["experience"] = "must be one of beginner, intermediate, advanced"
		}
		opts.Experience = experience
	}
	if raw := strings.TrimSpace(body.Mode); raw != "" {
		mode, err := orchestrator.ParsePerformanceMode(raw)
		if err != nil {
			fieldErrors["mode"] = "must be one of full, quick, ultraFast"
		}
		opts.Mode = mode
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	language := s.languageHint(sess.id, body.Text)
	sess.orch.GenerateLesson(body.Text, opts)
	return successWithStatus(c, http.StatusAccepted, acceptedView{
		SessionID:        sess.id,
		State:            sess.orch.State(),
		DetectedLanguage: language,
	})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if _, err := s.sessions.get(id); err != nil {
		return failNotFound(c, "Session not found")
	}
	if err := s.sessions.remove(id); err != nil {
		return failNotFound(c, "Session not found")
	}

	s.logger.Info().Str("session_id", id).Msg("session closed")
	return success(c, map[string]any{
		"session_id": id,
		"closed":     true,
	})
}

// validateText rejects oversized input. Blank text passes so that the
// orchestrator can ignore it without touching state.
func validateText(text string) map[string]string {
	fieldErrors := map[string]string{}
	if len([]rune(text)) > maxInputRunes {
		fieldErrors["text"] = fmt.Sprintf("must be at most %d characters", maxInputRunes)
	}
	return fieldErrors
}

func (s *Server) languageHint(sessionID, text string) string {
	code := s.opts.DetectLanguage(text)
	if code != "" && code != "en" {
		s.logger.Warn().
			Str("session_id", sessionID).
			Str("language", code).
			Msg("input does not look like English; sign videos are matched against English glosses")
	}
	return code
}
