package mockapi

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
	"github.com/brianfdo/signlearner/internal/logging"
)

const welcomeMessage = "Welcome to SignLearner API!"

type Options struct {
	Host            string
	Port            int
	Delay           time.Duration
	ShutdownTimeout time.Duration
}

// Server is a canned stand-in for the SignLearner API.
type Server struct {
	logger zerolog.Logger
	opts   Options
}

type textToASLBody struct {
	Text     string `json:"text"`
	FastMode bool   `json:"fast_mode"`
}

type lessonBody struct {
	Prompt     string  `json:"prompt"`
	Age        *int    `json:"age"`
	Experience *string `json:"experience"`
	QuickMode  bool    `json:"quick_mode"`
	UltraFast  bool    `json:"ultra_fast"`
}

type videoEntry struct {
	Word            string  `json:"word,omitempty"`
	VocabularyWord  string  `json:"vocabulary_word,omitempty"`
	VideoID         *string `json:"video_id"`
	Title           string  `json:"title"`
	EnhancedTitle   *string `json:"enhanced_title"`
	URL             *string `json:"url"`
	EmbedURL        *string `json:"embed_url"`
	Duration        float64 `json:"duration"`
	SimilarityScore float64 `json:"similarity_score"`
	Source          string  `json:"source,omitempty"`
	Step            int     `json:"step,omitempty"`
}

type textToASLResponse struct {
	VideoSequence     []videoEntry `json:"video_sequence"`
	SearchStrategy    string       `json:"search_strategy"`
	PhraseSimilarity  float64      `json:"phrase_similarity"`
	WordAvgSimilarity float64      `json:"word_avg_similarity"`
	ASLEnhancement    any          `json:"asl_enhancement"`
	FoundVideos       int          `json:"found_videos"`
	TotalVideos       int          `json:"total_videos"`
}

type lessonResponse struct {
	LessonTopic        string       `json:"lesson_topic"`
	TargetAge          *int         `json:"target_age"`
	ExperienceLevel    *string      `json:"experience_level"`
	VocabularyWords    []string     `json:"vocabulary_words"`
	LessonObjectives   []string     `json:"lesson_objectives"`
	GrammarFocus       []string     `json:"grammar_focus"`
	PracticeActivities []string     `json:"practice_activities"`
	CulturalNotes      []string     `json:"cultural_notes"`
	DifficultyLevel    string       `json:"difficulty_level"`
	EstimatedDuration  string       `json:"estimated_duration"`
	LessonVideos       []videoEntry `json:"lesson_videos"`
	TotalVocabulary    int          `json:"total_vocabulary"`
	VideosFound        int          `json:"videos_found"`
	GeneratedAt        string       `json:"generated_at"`
	LangchainUsed      bool         `json:"langchain_used"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewServer(logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 8000
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	return &Server{
		logger: logging.Component(logger, "mockapi"),
		opts: Options{
			Host:            host,
			Port:            port,
			Delay:           opts.Delay,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Handler builds the echo instance serving the fake API.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(logging.RequestLogger(s.logger))

	e.GET("/", s.handleRoot)
	e.POST("/text-to-asl", s.handleTextToASL)
	e.POST("/generate-lesson", s.handleGenerateLesson)
	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("mock server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("mock server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Dur("delay", s.opts.Delay).Msg("mock signlearner api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start mock server: %w", err)
	}
	s.logger.Info().Msg("mock signlearner api stopped")
	return nil
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
		if text, ok := he.Message.(string); ok && strings.TrimSpace(text) != "" {
			message = text
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}
	_ = c.JSON(status, messageResponse{Message: message})
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: welcomeMessage})
}

func (s *Server) handleTextToASL(c echo.Context) error {
	var body textToASLBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, messageResponse{Message: "Invalid request body"})
	}
	text := strings.TrimSpace(body.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Text is required"})
	}
	if err := s.delay(c.Request().Context()); err != nil {
		return err
	}
	if containsFailWord(text) {
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Mock translation failure requested",
		})
	}

	return c.JSON(http.StatusOK, translate(text))
}

func (s *Server) handleGenerateLesson(c echo.Context) error {
	var body lessonBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, messageResponse{Message: "Invalid request body"})
	}
	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Prompt is required"})
	}
	if err := s.delay(c.Request().Context()); err != nil {
		return err
	}
	if containsFailWord(prompt) {
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Mock lesson failure requested",
		})
	}

	return c.JSON(http.StatusOK, buildLesson(prompt, body))
}

func (s *Server) delay(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// translate matches a single catalog phrase as a whole before falling back to
// word-by-word lookup.
func translate(text string) textToASLResponse {
	tokens := tokenize(text)

	if len(tokens) == 1 && strings.Contains(tokens[0], " ") {
		entry := entryFor(tokens[0], "phrase")
		return textToASLResponse{
			VideoSequence:    []videoEntry{entry},
			SearchStrategy:   "phrase",
			PhraseSimilarity: 1,
			FoundVideos:      1,
			TotalVideos:      1,
		}
	}

	videos := make([]videoEntry, 0, len(tokens))
	found := 0
	for _, token := range tokens {
		entry := entryFor(token, "words")
		if entry.EmbedURL != nil {
			found++
		}
		videos = append(videos, entry)
	}

	resp := textToASLResponse{
		VideoSequence:  videos,
		SearchStrategy: "words",
		FoundVideos:    found,
		TotalVideos:    len(videos),
	}
	if len(videos) > 0 {
		resp.WordAvgSimilarity = float64(found) / float64(len(videos))
	}
	return resp
}

func buildLesson(prompt string, body lessonBody) lessonResponse {
	vocabulary := vocabularyFor(prompt)
	structure := structureFor(prompt)

	videos := []videoEntry{}
	found := 0
	if !body.QuickMode && !body.UltraFast {
		for idx, word := range vocabulary {
			entry := entryFor(word, "")
			entry.Word = ""
			entry.VocabularyWord = word
			entry.Step = idx + 1
			if entry.VideoID != nil {
				found++
			}
			videos = append(videos, entry)
		}
	}

	return lessonResponse{
		LessonTopic:        prompt,
		TargetAge:          body.Age,
		ExperienceLevel:    body.Experience,
		VocabularyWords:    vocabulary,
		LessonObjectives:   structure.Objectives,
		GrammarFocus:       structure.GrammarFocus,
		PracticeActivities: structure.PracticeActivities,
		CulturalNotes:      structure.CulturalNotes,
		DifficultyLevel:    structure.Difficulty,
		EstimatedDuration:  structure.EstimatedDuration,
		LessonVideos:       videos,
		TotalVocabulary:    len(vocabulary),
		VideosFound:        found,
		GeneratedAt:        globaltime.Now().Format("2006-01-02T15:04:05.000000"),
		LangchainUsed:      false,
	}
}

func entryFor(word, source string) videoEntry {
	video, ok := catalog[word]
	if !ok {
		return videoEntry{
			Word:   word,
			Title:  fmt.Sprintf("No video found for '%s'", word),
			Source: source,
		}
	}

	videoID := video.VideoID
	enhanced := strings.ToUpper(word)
	watchURL := video.watchURL()
	embedURL := video.embedURL()
	return videoEntry{
		Word:            word,
		VideoID:         &videoID,
		Title:           video.Title,
		EnhancedTitle:   &enhanced,
		URL:             &watchURL,
		EmbedURL:        &embedURL,
		Duration:        video.Duration,
		SimilarityScore: 1,
		Source:          source,
	}
}
