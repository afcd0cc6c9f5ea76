package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianfdo/signlearner/internal/cli"
	"github.com/brianfdo/signlearner/internal/mockapi"
)

func runMock(args []string) int {
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "127.0.0.1", "Host interface to bind")
	port := fs.Int("port", 8000, "HTTP port")
	delay := fs.Duration("delay", 0, "Artificial latency added to every API response")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}
	if *delay < 0 {
		fmt.Fprintln(os.Stderr, "--delay must be >= 0")
		return 2
	}

	env, err := loadRuntime(envLoader, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mockapi.NewServer(env.logger, mockapi.Options{
		Host:            *host,
		Port:            *port,
		Delay:           *delay,
		ShutdownTimeout: 5 * time.Second,
	})
	if err := srv.Start(ctx); err != nil {
		env.logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("mock server failed")
		fmt.Fprintf(os.Stderr, "Mock server failed: %v\n", err)
		return 1
	}
	return 0
}
