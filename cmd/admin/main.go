// Command wafi-admin is a terminal console for reviewing submitted job
// applications. Every run logs in, executes one command and logs out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wafiPortal/internal/config"
)

const usage = `usage: wafi-admin [flags] <command> [args]

commands:
  login                              check the credentials and print the user
  list [filter flags]                print one page of submissions
  show <id>                          print one submission
  status <id> <status> [notes]       change the status of a submission
  stats                              print dashboard counters
  export <file.xlsx> [filter flags]  write matching submissions to a workbook
  browse                             interactive list (search, status, from, to, page, next, prev, show, quit)

flags:
`

func main() {
	var (
		baseURL  = flag.String("backend", "", "backend API base URL (default BACKEND_BASE_URL)")
		username = flag.String("username", "", "admin username (default WAFI_ADMIN_USERNAME)")
		password = flag.String("password", "", "admin password (default WAFI_ADMIN_PASSWORD)")
		timeout  = flag.Duration("timeout", 10*time.Second, "backend request timeout")
		verbose  = flag.Bool("v", false, "log backend calls")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	_ = godotenv.Load()
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	backendCfg, err := loadBackendConfig(*baseURL, *timeout)
	if err != nil {
		log.Fatalf("load backend config: %v", err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := newConsole(backendCfg, logger, os.Stdin, os.Stdout)
	user := firstNonEmpty(*username, os.Getenv("WAFI_ADMIN_USERNAME"))
	pass := firstNonEmpty(*password, os.Getenv("WAFI_ADMIN_PASSWORD"))
	if err := c.run(ctx, user, pass, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadBackendConfig(baseURL string, timeout time.Duration) (config.BackendConfig, error) {
	baseURL = firstNonEmpty(baseURL, os.Getenv("BACKEND_BASE_URL"))
	if baseURL == "" {
		return config.BackendConfig{}, fmt.Errorf("backend base URL is required (BACKEND_BASE_URL)")
	}
	return config.BackendConfig{BaseURL: baseURL, Timeout: timeout}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

