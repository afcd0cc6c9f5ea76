package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brianfdo/signlearner/internal/cli"
	"github.com/brianfdo/signlearner/internal/orchestrator"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	apiURL := fs.String("api-url", "", "Override SIGNLEARNER_API_URL")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	text := joinArgs(fs.Args())
	if text == "" {
		fmt.Fprintln(os.Stderr, "translate requires text")
		printTranslateUsage()
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
	env.warnIfNotEnglish(text)

	orch := env.newOrchestrator()
	defer orch.Close()

	state, err := settle(*timeout, orch, func() { orch.Translate(text) })
	if err != nil {
		env.logger.Error().Err(err).Msg("translate did not settle")
		fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		return 1
	}

	return printOutcome(os.Stdout, state, outputFormat, func(w io.Writer) error {
		return writeTranslation(w, state.Translation)
	})
}

// printOutcome renders a settled state and maps it to an exit code.
func printOutcome(w io.Writer, state orchestrator.State, format string, table func(io.Writer) error) int {
	if !state.Settled() {
		fmt.Fprintf(os.Stderr, "Request did not finish (state %s)\n", state.Phase)
		return 1
	}
	if state.Phase == orchestrator.PhaseFailed {
		message := orchestrator.DefaultErrorMessage(state.Operation)
		if state.Err != nil {
			message = state.Err.Message
		}
		if format == outputFormatJSON {
			_ = printJSON(w, state)
		}
		fmt.Fprintln(os.Stderr, message)
		return 1
	}

	if format == outputFormatJSON {
		if err := printJSON(w, state); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := table(w); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render output: %v\n", err)
		return 1
	}
	return 0
}

func printTranslateUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  signlearner translate <text> [--format table|json] [--api-url URL] [--env .env] [--timeout 2m]")
}
