package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "translate":
		return runTranslate(args[1:])
	case "lesson":
		return runLesson(args[1:])
	case "serve":
		return runServe(args[1:])
	case "mock":
		return runMock(args[1:])
	case "health":
		return runHealth(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "signlearner CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  signlearner <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  translate  Translate text into a sequence of ASL videos")
	fmt.Fprintln(os.Stderr, "  lesson     Generate an ASL lesson plan for a topic")
	fmt.Fprintln(os.Stderr, "  serve      Start the HTTP session host")
	fmt.Fprintln(os.Stderr, "  mock       Start a canned SignLearner API for local development")
	fmt.Fprintln(os.Stderr, "  health     Verify the SignLearner API is reachable")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"signlearner <command> -h\" for command-specific flags.")
}
