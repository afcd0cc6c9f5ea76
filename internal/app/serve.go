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
	"github.com/brianfdo/signlearner/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	apiURL := fs.String("api-url", "", "Override SIGNLEARNER_API_URL")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout (event streams are exempt)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	maxSessions := fs.Int("max-sessions", 1000, "Maximum number of open sessions")
	sessionTTL := fs.Duration("session-ttl", 30*time.Minute, "Close sessions idle for this long")

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
	if *maxSessions <= 0 {
		fmt.Fprintln(os.Stderr, "--max-sessions must be > 0")
		return 2
	}
	if *sessionTTL <= 0 {
		fmt.Fprintln(os.Stderr, "--session-ttl must be > 0")
		return 2
	}

	env, err := loadRuntime(envLoader, *apiURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(env.apiClient(), env.logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowedOrigins:  env.cfg.CORSAllowedOriginsList(),
		MaxSessions:     *maxSessions,
		SessionTTL:      *sessionTTL,
		Defaults:        env.defaults(),
	})

	env.logger.Info().Str("api_url", env.cfg.APIURL).Msg("forwarding sessions to signlearner api")
	if err := srv.Start(ctx); err != nil {
		env.logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
