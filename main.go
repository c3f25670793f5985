// File: main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/xkilldash9x/easyapply/cmd"
	"github.com/xkilldash9x/easyapply/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  easyapply %s
  Commands: launch, apply, probe, preview, status, stop-actions, stop, bank, migrate.
  While apply runs, stop-actions, stop and status are still accepted.
  Ctrl+C stops the running command; "exit" closes the browser and quits.

`

// Swapped in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	app := cmd.NewApp()

	// One-shot mode: run the command line and exit.
	if len(os.Args) > 1 {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err := cmd.Execute(ctx, app)
		stop()
		app.Close()
		observability.Sync()
		if err != nil && !errors.Is(err, context.Canceled) {
			osExit(1)
		}
		return
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	fmt.Printf(banner, cmd.Version)
	runShell(os.Stdin, os.Stdout, app, sigs)
	app.Close()
	observability.Sync()
	fmt.Println("Exiting easyapply.")
}

// alongsideCommands may run while another command is still in flight, so an
// attempt can be stopped from the prompt.
var alongsideCommands = map[string]bool{
	"stop-actions": true,
	"stop":         true,
	"status":       true,
}

// runCommandLine executes one line on a fresh command tree. Swapped in tests.
var runCommandLine = func(ctx context.Context, app *cmd.App, out io.Writer, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	rootCmd := cmd.NewRootCommand(app)
	rootCmd.SetArgs(strings.Fields(line))
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	return rootCmd.ExecuteContext(ctx)
}

// lockedWriter serializes output from a command and one running alongside it.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// runShell reads commands until EOF, "exit" or a signal at the prompt. A
// signal while a command runs cancels only that command.
func runShell(in io.Reader, out io.Writer, app *cmd.App, sigs <-chan os.Signal) {
	out = &lockedWriter{w: out}
	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "easyapply > ")
		var line string
		select {
		case <-sigs:
			fmt.Fprintln(out)
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		if terminated := executeShellCommand(app, out, line, sigs, lines); terminated {
			return
		}
	}
}

// executeShellCommand runs one line in the background and keeps reading input
// while it runs: stop-actions, stop and status are executed at once, anything
// else is refused until the command finishes. It reports true when SIGTERM
// arrived and the shell should exit.
func executeShellCommand(app *cmd.App, out io.Writer, line string, sigs <-chan os.Signal, lines <-chan string) (terminated bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runCommandLine(ctx, app, out, line)
	}()

	var err error
wait:
	for {
		select {
		case err = <-done:
			break wait
		case sig := <-sigs:
			fmt.Fprintln(out, "\nStopping...")
			cancel()
			err = <-done
			terminated = sig == syscall.SIGTERM
			break wait
		case l, ok := <-lines:
			if !ok {
				// Input ended; the shell exits once this command returns.
				lines = nil
				continue
			}
			runAlongside(app, out, strings.TrimSpace(l))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Error:", err)
	}
	return terminated
}

func runAlongside(app *cmd.App, out io.Writer, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if !alongsideCommands[fields[0]] {
		fmt.Fprintf(out, "A command is still running; only stop-actions, stop and status are accepted (got %q).\n", fields[0])
		return
	}
	if err := runCommandLine(context.Background(), app, out, line); err != nil {
		fmt.Fprintln(out, "Error:", err)
	}
}

// handlePanic logs an unrecovered panic to panicLogFile and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "\nCRASH: details written to %s\n", panicLogFile)
	osExit(1)
}
