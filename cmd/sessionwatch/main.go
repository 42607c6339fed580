// sessionwatch logs in to the admin API and keeps an eye on the session:
// it polls whoami every minute and, inside the last ten minutes, shows a
// live countdown with the option to log out early.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/ojinta/portfolio/go-services/internal/watch"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var baseURL, username, logOutput string
	var threshold, poll = watch.DefaultThreshold, watch.DefaultPollInterval

	flagSet := pflag.NewFlagSet("sessionwatch", pflag.ContinueOnError)
	flagSet.StringVar(&baseURL, "url", envOr("ADMIN_URL", "http://localhost:3000"), "admin service base URL")
	flagSet.StringVarP(&username, "username", "u", envOr("ADMIN_USERNAME", "admin"), "admin username")
	flagSet.DurationVar(&threshold, "threshold", threshold, "show the warning when this much time is left")
	flagSet.DurationVar(&poll, "poll", poll, "whoami poll interval")
	flagSet.StringVar(&logOutput, "log-output", "", "write logs to this file (stdout belongs to the UI)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set")
	}

	var logSink io.Writer = io.Discard
	if logOutput != "" {
		f, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logSink = f
	}
	logger.SetOutput(logSink)
	logger.Init(os.Getenv("LOG_LEVEL"))

	client, err := watch.NewClient(baseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	logger.Infof("signed in as %s", user.Username)

	m := newModel(user)
	program := tea.NewProgram(m, tea.WithAltScreen())
	watcher := watch.New(client, teaNotifier{program}, watch.WithThreshold(threshold), watch.WithPollInterval(poll))
	m.watcher = watcher

	go func() {
		err := watcher.Run(ctx)
		program.Send(watchDoneMsg{err: err})
	}()

	final, err := program.Run()
	if err != nil {
		return err
	}
	cancel()
	if fm, ok := final.(*model); ok {
		closeOnQuit(context.Background(), client, fm.state)
	}
	return nil
}

// closeOnQuit logs the session out when the UI was quit with q before the
// watcher ended it.
func closeOnQuit(ctx context.Context, s watch.Session, state watch.State) {
	if state == watch.LoggedOut {
		return
	}
	if err := s.Logout(ctx); err != nil {
		logger.Warnf("logout on quit failed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
