package app

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/brianfdo/signlearner/internal/cli"
	"github.com/brianfdo/signlearner/internal/mockapi"
	"github.com/brianfdo/signlearner/internal/orchestrator"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	if code := Run([]string{"frobnicate"}); code != 2 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if code := Run(nil); code != 2 {
		t.Fatalf("unexpected exit code without args: %d", code)
	}
	if code := Run([]string{"help"}); code != 0 {
		t.Fatalf("unexpected exit code for help: %d", code)
	}
}

func TestTranslateRequiresText(t *testing.T) {
	if code := runTranslate([]string{"   "}); code != 2 {
		t.Fatalf("unexpected exit code: %d", code)
	}
}

func TestLessonRejectsBadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--experience", "expert", "colors"},
		{"--mode", "turbo", "colors"},
		{"--age", "-4", "colors"},
		{"--format", "yaml", "colors"},
	} {
		if code := runLesson(args); code != 2 {
			t.Fatalf("runLesson(%v): unexpected exit code %d", args, code)
		}
	}
}

func TestCommandsAgainstMockAPI(t *testing.T) {
	srv := httptest.NewServer(mockapi.NewServer(zerolog.Nop(), mockapi.Options{}).Handler())
	t.Cleanup(srv.Close)

	envFile := filepath.Join(t.TempDir(), "missing.env")
	common := []string{"--env", envFile, "--api-url", srv.URL, "--timeout", "10s"}

	tests := []struct {
		name string
		run  func([]string) int
		args []string
		want int
	}{
		{name: "translate", run: runTranslate, args: append(append([]string{}, common...), "hello"), want: 0},
		{name: "translate json", run: runTranslate, args: append(append([]string{}, common...), "--format", "json", "yes", "no"), want: 0},
		{name: "translate failure", run: runTranslate, args: append(append([]string{}, common...), "fail"), want: 1},
		{name: "lesson", run: runLesson, args: append(append([]string{}, common...), "--mode", "quick", "colors"), want: 0},
		{name: "lesson failure", run: runLesson, args: append(append([]string{}, common...), "fail"), want: 1},
		{name: "health", run: runHealth, args: []string{"--env", envFile, "--api-url", srv.URL}, want: 0},
	}

	for _, tc := range tests {
		if got := tc.run(tc.args); got != tc.want {
			t.Fatalf("%s: exit code %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestParseLessonFlags(t *testing.T) {
	t.Parallel()

	got, err := parseLessonFlags(10, "Intermediate", "ultra_fast")
	if err != nil {
		t.Fatalf("parseLessonFlags: %v", err)
	}
	want := orchestrator.RequestOptions{Age: 10, Experience: orchestrator.ExperienceIntermediate, Mode: orchestrator.ModeUltraFast}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected options (-want +got):\n%s", diff)
	}

	got, err = parseLessonFlags(0, "", "")
	if err != nil {
		t.Fatalf("parseLessonFlags: %v", err)
	}
	if got != (orchestrator.RequestOptions{}) {
		t.Fatalf("expected zero options so defaults apply, got %+v", got)
	}
}

func TestWriteTranslation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeTranslation(&buf, &orchestrator.TranslationResult{
		Text: "hello goodbye",
		Videos: []orchestrator.VideoRef{
			{Word: "hello", Title: "HELLO", EmbedURL: "https://www.youtube.com/embed/FVjpLa8GqeM", DurationSeconds: 12, Similarity: 0.92},
			{Word: "goodbye", Title: "No video found for 'goodbye'"},
		},
		Summary: orchestrator.SearchSummary{
			Strategy:          orchestrator.StrategyWords,
			WordAvgSimilarity: 0.46,
			FoundVideos:       1,
			TotalVideos:       2,
		},
	})
	if err != nil {
		t.Fatalf("writeTranslation: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"strategy: Word-by-word match",
		"videos: 1/2 found",
		"word average similarity: 0.46",
		"0:12",
		"(no video)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteLesson(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeLesson(&buf, &orchestrator.LessonResult{
		Topic:             "colors",
		TargetAge:         25,
		Experience:        orchestrator.ExperienceBeginner,
		Vocabulary:        []string{"red", "blue"},
		CulturalNotes:     "ASL is a complete, natural language\nFacial expressions are grammatical in ASL",
		Difficulty:        "beginner",
		EstimatedDuration: orchestrator.EstimatedDuration{Minutes: 30, Numeric: true},
		TotalVocabulary:   2,
		GeneratedAt:       time.Date(2025, 7, 1, 10, 20, 30, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("writeLesson: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"topic: colors",
		"estimated duration: 30 minutes",
		"  - blue",
		"Cultural notes:",
		"  - Facial expressions are grammatical in ASL",
		"generated at: 2025-07-01 10:20:30",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "embed_url") {
		t.Fatalf("did not expect a video table without videos:\n%s", out)
	}
}

func TestPrintOutcomeFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rendered := false
	code := printOutcome(&buf, orchestrator.State{
		Phase:     orchestrator.PhaseFailed,
		Operation: orchestrator.OperationLesson,
		Err:       &orchestrator.ErrorInfo{Message: "Vector store unavailable", Operation: orchestrator.OperationLesson},
	}, outputFormatTable, func(io.Writer) error {
		rendered = true
		return nil
	})
	if code != 1 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if rendered || buf.Len() != 0 {
		t.Fatalf("failed states must not render a result table")
	}

	code = printOutcome(&buf, orchestrator.State{Phase: orchestrator.PhaseSuccess}, outputFormatJSON, nil)
	if code != 0 || !strings.Contains(buf.String(), `"phase": "success"`) {
		t.Fatalf("unexpected JSON outcome: %d %s", code, buf.String())
	}
}

func TestPrintOutcomeRejectsUnsettledState(t *testing.T) {
	t.Parallel()

	for _, phase := range []orchestrator.Phase{orchestrator.PhaseIdle, orchestrator.PhaseLoading} {
		var buf bytes.Buffer
		code := printOutcome(&buf, orchestrator.State{Phase: phase}, outputFormatJSON, nil)
		if code != 1 || buf.Len() != 0 {
			t.Fatalf("%s: expected exit 1 without output, got %d %q", phase, code, buf.String())
		}
	}
}

func TestLogEnvFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		file  cli.EnvFile
		err   error
		wants []string
	}{
		{
			name:  "requested file",
			file:  cli.EnvFile{Path: "dev.env", Source: cli.SourceFlag},
			wants: []string{`"level":"debug"`, `"path":"dev.env"`, `"source":"flag"`},
		},
		{
			name: "rejected override then default",
			file: cli.EnvFile{Path: ".env", Source: cli.SourceDefault, Rejected: []string{"/etc/missing.env"}},
			wants: []string{
				`"path":"/etc/missing.env"`,
				"could not read SIGNLEARNER_ENV_FILE",
				`"level":"warn","path":".env","source":"default"`,
			},
		},
		{
			name:  "nothing loaded",
			err:   errors.New("no env file could be loaded (tried .env)"),
			wants: []string{`"level":"warn"`, "continuing without an env file", "tried .env"},
		},
	}

	for _, tc := range tests {
		var buf bytes.Buffer
		logEnvFile(zerolog.New(&buf), tc.file, tc.err)
		for _, want := range tc.wants {
			if !strings.Contains(buf.String(), want) {
				t.Fatalf("%s: log missing %q:\n%s", tc.name, want, buf.String())
			}
		}
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("abcdefghij", 6); got != "abc..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateForTable("  short ", 10); got != "short" {
		t.Fatalf("unexpected trim: %q", got)
	}
}
