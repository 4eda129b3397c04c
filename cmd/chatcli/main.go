// chatcli is a terminal client for the authchat backend. It drives the same
// view controllers as the web front end and keeps its backend session in a
// local SQLite file between invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/authchat/internal/backend"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/ashureev/authchat/internal/logger"
	"github.com/ashureev/authchat/internal/session"
	"github.com/ashureev/authchat/internal/store"
	"github.com/joho/godotenv"
)

// cliDeviceID names the terminal's device record in the local store.
const cliDeviceID = "cli"

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	case errors.Is(err, errReported):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: chatcli [flags] <signin|signup|forgot|chat|signout>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chatcli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backendURL := fs.String("backend", envOr("BACKEND_URL", "http://localhost:3000"), "backend base URL")
	dataDir := fs.String("data", envOr("CHATCLI_DATA", defaultDataDir()), "directory for the local session store")
	timeout := fs.Duration("timeout", 30*time.Second, "backend request timeout")

	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		usage(stdout, fs)
		return errUsage
	}
	cmd := fs.Arg(0)

	log, closeLog := logger.Init(logger.Config{
		Format: "text",
		File:   filepath.Join(*dataDir, "chatcli.log"),
	})
	defer func() { _ = closeLog() }()

	repo, err := store.NewSQLite(filepath.Join(*dataDir, "session.db"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	now := time.Now()
	if err := repo.UpsertDevice(ctx, &domain.Device{
		DeviceID:   cliDeviceID,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return fmt.Errorf("record device: %w", err)
	}

	client, err := backend.New(backend.Config{
		BaseURL: strings.TrimRight(*backendURL, "/"),
		Timeout: *timeout,
		Logger:  log.With("component", "backend"),
	})
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	sessionJar, err := session.NewJar(ctx, repo, cliDeviceID, client.BaseURL())
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	a := newApp(client, client, sessionJar, newPrompter(stdin, stdout), stdout, log)
	return a.dispatch(ctx, cmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "authchat")
	}
	return ".authchat"
}
