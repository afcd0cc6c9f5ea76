package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/brianfdo/signlearner/internal/cli"
	"github.com/brianfdo/signlearner/internal/config"
	"github.com/brianfdo/signlearner/internal/langdetect"
	"github.com/brianfdo/signlearner/internal/logging"
	"github.com/brianfdo/signlearner/internal/orchestrator"
	"github.com/brianfdo/signlearner/internal/signapi"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

type commandEnv struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// loadRuntime loads the .env file, config and logger shared by every command.
// Logs go to stderr so that command output on stdout stays clean.
func loadRuntime(envLoader *cli.EnvLoader, apiURLOverride string) (*commandEnv, error) {
	var (
		envFile cli.EnvFile
		envErr  error
	)
	if envLoader != nil {
		envFile, envErr = envLoader.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if override := strings.TrimSpace(apiURLOverride); override != "" {
		cfg.APIURL = override
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --api-url: %w", err)
		}
	}

	logger, err := logging.NewWithWriter(os.Stderr, cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if envLoader != nil {
		logEnvFile(logger, envFile, envErr)
	}

	return &commandEnv{cfg: cfg, logger: logger}, nil
}

func logEnvFile(logger zerolog.Logger, file cli.EnvFile, err error) {
	for _, path := range file.Rejected {
		logger.Warn().Str("path", path).Msgf("could not read %s, falling back", cli.EnvFileVar)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("continuing without an env file")
		return
	}
	event := logger.Debug()
	if file.Source != cli.SourceOverride && file.Source != cli.SourceFlag {
		event = logger.Warn()
	}
	event.Str("path", file.Path).Str("source", file.Source).Msg("environment loaded")
}

func (r *commandEnv) apiClient() *signapi.Client {
	return signapi.NewClient(r.cfg.APIURL,
		signapi.WithTimeout(r.cfg.APITimeout),
		signapi.WithLogger(logging.Component(r.logger, "signapi")),
	)
}

// defaults returns the lesson defaults from config. Config validation has
// already rejected unknown names.
func (r *commandEnv) defaults() orchestrator.RequestOptions {
	experience, _ := orchestrator.ParseExperience(r.cfg.DefaultExperience)
	mode, _ := orchestrator.ParsePerformanceMode(r.cfg.DefaultMode)
	return orchestrator.RequestOptions{
		Age:        r.cfg.DefaultAge,
		Experience: experience,
		Mode:       mode,
	}
}

func (r *commandEnv) newOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(r.apiClient(),
		orchestrator.WithLogger(logging.Component(r.logger, "orchestrator")),
		orchestrator.WithDefaults(r.defaults()),
	)
}

func (r *commandEnv) warnIfNotEnglish(text string) {
	if code := langdetect.DetectISO6391(text); code != "" && code != "en" {
		r.logger.Warn().Str("language", code).Msg("input does not look like English; results may be sparse")
		fmt.Fprintf(os.Stderr, "Warning: input looks like %q; videos are matched against English signs\n", code)
	}
}

// settle starts one request on a fresh orchestrator and waits for its outcome.
func settle(timeout time.Duration, orch *orchestrator.Orchestrator, start func()) (orchestrator.State, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start()
	state, err := orch.Wait(ctx)
	if err != nil {
		return state, fmt.Errorf("wait for response: %w", err)
	}
	return state, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
