package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopTimeout  = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the redshift daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if ctx.daemonRunning() {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := launchDaemon(exe); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")

			if err := waitForSocket(ctx, true, daemonStartTimeout); err != nil {
				return fmt.Errorf("daemon did not come up: %w", err)
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the redshift daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if !ctx.daemonRunning() {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}

			err := ctx.withClient(func(client *ipc.Client) error {
				_, stopErr := client.Stop()
				return stopErr
			})
			if err != nil {
				return err
			}

			if err := waitForSocket(ctx, false, daemonStopTimeout); err != nil {
				fmt.Fprintln(stdout, "Stop request sent; daemon still shutting down")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd}
}

// daemonExecutable locates redshiftd next to this binary, falling back to
// PATH lookup.
func daemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "redshiftd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("redshiftd")
	if err != nil {
		return "", fmt.Errorf("locate redshiftd: %w", err)
	}
	return path, nil
}

func launchDaemon(exe string) error {
	cmd := exec.Command(exe)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", exe, err)
	}
	// Detach; the daemon owns its own lifecycle from here.
	return cmd.Process.Release()
}

func waitForSocket(ctx *commandContext, up bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.daemonRunning() == up {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if up {
		return fmt.Errorf("socket %s not answering after %s", ctx.socketPath(), timeout)
	}
	return fmt.Errorf("socket %s still answering after %s", ctx.socketPath(), timeout)
}
