package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brianfdo/signlearner/internal/cli"
	"github.com/brianfdo/signlearner/internal/orchestrator"
)

func runLesson(args []string) int {
	fs := flag.NewFlagSet("lesson", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	apiURL := fs.String("api-url", "", "Override SIGNLEARNER_API_URL")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	age := fs.Int("age", 0, "Learner age (default SIGNLEARNER_DEFAULT_AGE)")
	experience := fs.String("experience", "", "Experience level: beginner, intermediate or advanced")
	mode := fs.String("mode", "", "Performance mode: full, quick or ultraFast")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	topic := joinArgs(fs.Args())
	if topic == "" {
		fmt.Fprintln(os.Stderr, "lesson requires a topic")
		printLessonUsage()
		return 2
	}
	if *age < 0 {
		fmt.Fprintln(os.Stderr, "--age must be > 0")
		return 2
	}

	opts, err := parseLessonFlags(*age, *experience, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	env, err := loadRuntime(envLoader, *apiURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	env.warnIfNotEnglish(topic)

	orch := env.newOrchestrator()
	defer orch.Close()

	state, err := settle(*timeout, orch, func() { orch.GenerateLesson(topic, opts) })
	if err != nil {
		env.logger.Error().Err(err).Msg("lesson did not settle")
		fmt.Fprintf(os.Stderr, "Lesson failed: %v\n", err)
		return 1
	}

	return printOutcome(os.Stdout, state, outputFormat, func(w io.Writer) error {
		return writeLesson(w, state.Lesson)
	})
}

// parseLessonFlags turns flag values into request options. Empty values are
// left zero so the configured defaults apply.
func parseLessonFlags(age int, experience, mode string) (orchestrator.RequestOptions, error) {
	opts := orchestrator.RequestOptions{Age: age}
	if raw := strings.TrimSpace(experience); raw != "" {
		parsed, err := orchestrator.ParseExperience(raw)
		if err != nil {
			return orchestrator.RequestOptions{}, fmt.Errorf("invalid --experience: %w", err)
		}
		opts.Experience = parsed
	}
	if raw := strings.TrimSpace(mode); raw != "" {
		parsed, err := orchestrator.ParsePerformanceMode(raw)
		if err != nil {
			return orchestrator.RequestOptions{}, fmt.Errorf("invalid --mode: %w", err)
		}
		opts.Mode = parsed
	}
	return opts, nil
}

func printLessonUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  signlearner lesson <topic> [--age 25] [--experience beginner] [--mode full|quick|ultraFast] [--format table|json] [--api-url URL] [--env .env] [--timeout 2m]")
}
