package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/tui"
	"github.com/fixitrock/rockdl/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// defaultPort is where port auto-discovery starts.
const defaultPort = 1700

// Remote target flags shared by the client commands.
var (
	globalHost  string
	globalToken string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "rockdl [url]...",
	Short:   "Download manager for firmware, flash tools and device files",
	Long:    `rockdl downloads files with pause/resume support, keeps a persistent download registry and detects ADB/Fastboot devices on USB.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
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
			return errors.New("rockdl is already running; use 'rockdl add <url>' or 'rockdl connect'")
		}
		defer func() { _ = ReleaseLock() }()

		portFlag, _ := cmd.Flags().GetInt("port")
		batchFile, _ := cmd.Flags().GetString("batch")
		outputDir, _ := cmd.Flags().GetString("output")
		noResume, _ := cmd.Flags().GetBool("no-resume")

		d, err := startDaemon(settings, daemonOptions{OutputDir: outputDir, NoResume: noResume})
		if err != nil {
			return err
		}
		defer func() { _ = d.Close() }()

		stopAPI, err := serveAPI(d.svc, portFlag, d.pool.DefaultDir)
		if err != nil {
			return err
		}
		defer stopAPI()

		urls, err := collectURLs(args, batchFile)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error reading batch file: %v\n", err)
		}
		queueURLs(d.svc, urls, outputDir)

		return tui.Run(d.svc, settings)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalHost, "host", "", "Daemon address host:port (or set ROCKDL_HOST)")
	rootCmd.PersistentFlags().StringVar(&globalToken, "token", "", "Bearer token for the daemon (or set ROCKDL_TOKEN)")

	rootCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	rootCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: 1700 or first available)")
	rootCmd.Flags().StringP("output", "o", "", "Default output directory")
	rootCmd.Flags().Bool("no-resume", false, "Do not auto-resume paused downloads on startup")
	rootCmd.SetVersionTemplate("rockdl version {{.Version}}\n")
}

// initializeGlobalState creates the app directories, configures logging and
// loads settings.
func initializeGlobalState() (*config.Settings, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create app dirs: %w", err)
	}

	utils.ConfigureDebug(config.GetLogsDir())

	settings, err := config.LoadSettings()
	if err != nil {
		utils.Debug("Falling back to default settings: %v", err)
		settings = config.DefaultSettings()
	}
	utils.CleanupLogs(settings.General.LogRetentionCount)
	return settings, nil
}

// serveAPI starts the HTTP API for svc and records its port for discovery.
// Requested download paths are confined to downloadRoot.
// The returned func stops the server and removes the port file.
func serveAPI(svc core.DownloadService, port int, downloadRoot func() string) (func(), error) {
	token, err := ensureAuthToken()
	if err != nil {
		return nil, err
	}
	port, ln, err := listen(port)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Handler:           newHTTPHandler(svc, token, downloadRoot),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Debug("HTTP server error: %v", err)
		}
	}()
	saveActivePort(port)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		removeActivePort()
	}, nil
}

func portPath() string {
	return filepath.Join(config.GetRuntimeDir(), "port")
}

// saveActivePort writes the active port for CLI discovery
func saveActivePort(port int) {
	if err := os.WriteFile(portPath(), []byte(strconv.Itoa(port)), 0o644); err != nil {
		utils.Debug("Error writing port file: %v", err)
		return
	}
	utils.Debug("HTTP server listening on port %d", port)
}

// removeActivePort cleans up the port file on exit
func removeActivePort() {
	if err := os.Remove(portPath()); err != nil && !os.IsNotExist(err) {
		utils.Debug("Error removing port file: %v", err)
	}
}

// readActivePort reads the port from the port file
func readActivePort() int {
	data, err := os.ReadFile(portPath())
	if err != nil {
		return 0
	}
	var port int
	_, _ = fmt.Sscanf(string(data), "%d", &port)
	return port
}

func isListening(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
