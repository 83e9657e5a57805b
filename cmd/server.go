package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the rockdl background server (daemon)",
	Long:  `Start, stop, or check the status of the rockdl background server.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start [url]...",
	Short: "Start the rockdl server in headless mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := initializeGlobalState()
		if err != nil {
			return err
		}

		isMaster, err := AcquireLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !isMaster {
			return errors.New("rockdl server is already running")
		}
		defer func() {
			if err := ReleaseLock(); err != nil {
				utils.Debug("Error releasing lock: %v", err)
			}
		}()

		portFlag, _ := cmd.Flags().GetInt("port")
		batchFile, _ := cmd.Flags().GetString("batch")
		outputDir, _ := cmd.Flags().GetString("output")
		exitWhenDone, _ := cmd.Flags().GetBool("exit-when-done")
		noResume, _ := cmd.Flags().GetBool("no-resume")
		noDevices, _ := cmd.Flags().GetBool("no-devices")

		savePID()
		defer removePID()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cmd, settings, serverOptions{
			daemon:       daemonOptions{OutputDir: outputDir, NoResume: noResume, NoDevices: noDevices},
			port:         portFlag,
			urls:         args,
			batchFile:    batchFile,
			exitWhenDone: exitWhenDone,
		})
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running rockdl server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := readPID()
		if pid == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No running rockdl server found (PID file missing).")
			return nil
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process %d: %w", pid, err)
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("stop server: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to process %d\n", pid)
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the rockdl server",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		pid := readPID()
		if pid == 0 {
			fmt.Fprintln(out, "rockdl server is NOT running.")
			return
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			fmt.Fprintf(out, "rockdl server is NOT running (Process %d not found).\n", pid)
			return
		}
		// Signal 0 only checks existence.
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Fprintf(out, "rockdl server is NOT running (Process %d dead).\n", pid)
			return
		}

		fmt.Fprintf(out, "rockdl server is running (PID: %d, Port: %d).\n", pid, readActivePort())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)

	serverStartCmd.Flags().StringP("batch", "b", "", "File containing URLs to download")
	serverStartCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serverStartCmd.Flags().StringP("output", "o", "", "Default output directory")
	serverStartCmd.Flags().Bool("exit-when-done", false, "Exit when all downloads complete")
	serverStartCmd.Flags().Bool("no-resume", false, "Do not auto-resume paused downloads on startup")
	serverStartCmd.Flags().Bool("no-devices", false, "Do not scan for USB devices")
}

type serverOptions struct {
	daemon       daemonOptions
	port         int
	urls         []string
	batchFile    string
	exitWhenDone bool
}

// runServer runs the headless daemon until ctx is done, or until every
// download has finished when exitWhenDone is set.
func runServer(ctx context.Context, cmd *cobra.Command, settings *config.Settings, opts serverOptions) error {
	d, err := startDaemon(settings, opts.daemon)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	stream, stopStream, err := d.svc.StreamEvents(ctx)
	if err != nil {
		return err
	}
	defer stopStream()

	stopAPI, err := serveAPI(d.svc, opts.port, d.pool.DefaultDir)
	if err != nil {
		return err
	}
	defer stopAPI()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rockdl %s running in server mode.\n", Version)
	fmt.Fprintf(out, "HTTP server listening on port %d\n", readActivePort())
	fmt.Fprintln(out, "Press Ctrl+C to exit.")

	urls, err := collectURLs(opts.urls, opts.batchFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error reading batch file: %v\n", err)
	}
	queueURLs(d.svc, urls, opts.daemon.OutputDir)

	var idle <-chan time.Time
	if opts.exitWhenDone {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		idle = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
			return nil
		case msg, ok := <-stream:
			if !ok {
				return nil
			}
			if line := describeEvent(msg); line != "" {
				fmt.Fprintln(out, line)
			}
		case <-idle:
			if d.pool.ActiveCount() == 0 && len(d.reg.Active()) == 0 && len(d.reg.Queued()) == 0 {
				fmt.Fprintln(out, "All downloads finished. Exiting...")
				return nil
			}
		}
	}
}

// describeEvent renders a transfer event as a log line for headless mode.
// Progress and snapshot events yield "".
func describeEvent(msg any) string {
	switch m := msg.(type) {
	case events.DownloadStartedMsg:
		return fmt.Sprintf("Started: %s [%s]", m.Filename, shortID(m.DownloadID))
	case events.DownloadCompleteMsg:
		return fmt.Sprintf("Completed: %s [%s] (in %s)", m.Filename, shortID(m.DownloadID), m.Elapsed.Round(time.Millisecond))
	case events.DownloadErrorMsg:
		return fmt.Sprintf("Error: %s [%s]: %v", m.Filename, shortID(m.DownloadID), m.Err)
	case events.DownloadQueuedMsg:
		return fmt.Sprintf("Queued: %s [%s]", m.Filename, shortID(m.DownloadID))
	case events.DownloadPausedMsg:
		return fmt.Sprintf("Paused: %s [%s]", m.Filename, shortID(m.DownloadID))
	case events.DownloadResumedMsg:
		return fmt.Sprintf("Resumed: %s [%s]", m.Filename, shortID(m.DownloadID))
	case events.DownloadRemovedMsg:
		return fmt.Sprintf("Removed: %s [%s]", m.Filename, shortID(m.DownloadID))
	case events.DeviceChangedMsg:
		if len(m.Ports) == 0 {
			return "Devices: none"
		}
		names := make([]string, 0, len(m.Ports))
		for _, p := range m.Ports {
			names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Kind))
		}
		return "Devices: " + strings.Join(names, ", ")
	}
	return ""
}

func pidPath() string {
	return filepath.Join(config.GetRuntimeDir(), "pid")
}

func savePID() {
	if err := os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		utils.Debug("Error writing PID file: %v", err)
	}
}

func removePID() {
	if err := os.Remove(pidPath()); err != nil && !os.IsNotExist(err) {
		utils.Debug("Error removing PID file: %v", err)
	}
}

func readPID() int {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}
