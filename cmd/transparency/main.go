package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/clearlabel/transparency/internal/client/cli"
	"github.com/joho/godotenv"

	log "github.com/sirupsen/logrus"
)

const envServerURL = "TRANSPARENCY_SERVER"

// main runs the interactive client.
func main() {
	if errRun := run(context.Background(), os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("client failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("transparency", flag.ContinueOnError)
	server := fs.String("server", envOr(envServerURL, "http://localhost:8000"), "API base URL")
	sessionPath := fs.String("session", defaultSessionPath(), "session file path")
	exportDir := fs.String("out", ".", "directory for exported reports")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	app, err := cli.NewApp(cli.Config{
		ServerURL:   *server,
		SessionPath: *sessionPath,
		ExportDir:   *exportDir,
	}, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "transparency-session.json"
	}
	return filepath.Join(dir, "transparency", "session.json")
}
