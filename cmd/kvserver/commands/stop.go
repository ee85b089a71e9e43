package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

// errProcessDone is a sentinel returned by stopProcess when the process has
// already exited.
var errProcessDone = errors.New("process already done")

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running kvserver instance",
	Long: `Stop signals a kvserver process started with "start" to shut down.

By default this sends a graceful shutdown signal (SIGTERM), which the
running process honors the same way it honors Ctrl+C: it stops accepting
new connections and waits up to its configured shutdown grace period for
in-flight commands to finish. Use --force to kill the process immediately
instead.

Examples:
  # Stop the server (uses the default PID file)
  kvserver stop

  # Stop a server started with a custom --pid-file
  kvserver stop --pid-file /var/run/kvserver.pid

  # Force kill
  kvserver stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/kvserver/kvserver.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill instead of graceful shutdown")
}

func runStop(_ *cobra.Command, _ []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nis the server running?", pidPath)
		}
		return fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID in file %s: %q", pidPath, string(pidData))
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if err := stopProcess(process, pid, stopForce); err != nil {
		if errors.Is(err, errProcessDone) {
			fmt.Println("server already stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	if stopForce {
		fmt.Println("server terminated")
	} else {
		fmt.Println("shutdown signal sent, server will stop gracefully")
	}
	return nil
}
