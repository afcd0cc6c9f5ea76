package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianfdo/signlearner/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "API ping timeout")
	apiURL := fs.String("api-url", "", "Override SIGNLEARNER_API_URL")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := loadRuntime(envLoader, *apiURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := env.apiClient()
	message, err := client.Ping(ctx)
	if err != nil {
		env.logger.Error().Err(err).Str("api_url", client.BaseURL()).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	env.logger.Info().
		Str("api_url", client.BaseURL()).
		Dur("timeout", *timeout).
		Msg("api health check passed")
	fmt.Printf("ok: %s (%s)\n", client.BaseURL(), message)
	return 0
}
