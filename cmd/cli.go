package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/registry"
	"github.com/fixitrock/rockdl/internal/usb"
	"github.com/fixitrock/rockdl/internal/utils"
)

var addCmd = &cobra.Command{
	Use:     "add [url]...",
	Aliases: []string{"a"},
	Short:   "Queue downloads on the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		batchFile, _ := cmd.Flags().GetString("batch")
		outputDir, _ := cmd.Flags().GetString("output")
		name, _ := cmd.Flags().GetString("name")
		fromClipboard, _ := cmd.Flags().GetBool("clipboard")

		urls, err := collectURLs(args, batchFile)
		if err != nil {
			return err
		}
		if fromClipboard {
			clip, err := clipboard.ReadAll()
			if err != nil {
				return fmt.Errorf("read clipboard: %w", err)
			}
			urls = append(urls, urlsFromText(clip)...)
		}
		if len(urls) == 0 {
			return errors.New("no URLs given; pass them as arguments, --batch or --clipboard")
		}
		if name != "" && len(urls) > 1 {
			return errors.New("--name only applies to a single URL")
		}

		svc, err := remoteService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		out := cmd.OutOrStdout()
		if name != "" {
			item, err := DownloadRequest{URL: urls[0], Filename: name, Item: types.Item{Path: utils.EnsureAbsPath(outputDir)}}.toItem()
			if err != nil {
				return err
			}
			id, err := svc.DownloadFile(item)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Queued %s [%s]\n", item.Name, shortID(id))
			return nil
		}

		ids := queueURLs(svc, urls, outputDir)
		for _, id := range ids {
			fmt.Fprintf(out, "Queued [%s]\n", shortID(id))
		}
		if len(ids) < len(urls) {
			return fmt.Errorf("%d of %d downloads could not be queued", len(urls)-len(ids), len(urls))
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"l", "list"},
	Short:   "List downloads on the running daemon",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		svc, err := remoteService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		records, err := svc.List()
		if err != nil {
			return err
		}
		if asJSON {
			if records == nil {
				records = []types.DownloadRecord{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	},
}

func newIDCommand(use, short, done string, aliases []string, op func(core.DownloadService, string) error) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>...",
		Aliases: aliases,
		Short:   short,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := remoteService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Shutdown() }()

			var errs []error
			for _, partial := range args {
				id, err := resolveDownloadID(svc, partial)
				if err == nil {
					err = op(svc, id)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", partial, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", done, shortID(id))
			}
			return errors.Join(errs...)
		},
	}
}

var (
	pauseCmd  = newIDCommand("pause", "Pause downloads", "Paused", nil, core.DownloadService.Pause)
	resumeCmd = newIDCommand("resume", "Resume paused or failed downloads", "Resumed", nil, core.DownloadService.Resume)
	rmCmd     = newIDCommand("rm", "Cancel and remove downloads", "Removed", []string{"delete"}, core.DownloadService.Delete)
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove completed and failed downloads from the list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := remoteService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		if err := svc.ClearCompleted(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared finished downloads")
		return nil
	},
}

var usbCmd = &cobra.Command{
	Use:   "usb",
	Short: "List USB serial devices and classify them as ADB or Fastboot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			settings = config.DefaultSettings()
		}
		probe := settings.Devices.ProbeEnabled
		if cmd.Flags().Changed("probe") {
			probe, _ = cmd.Flags().GetBool("probe")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		devices, err := usb.NewScanner(settings.Devices.BaudRate, probe).Scan(ctx)
		if err != nil {
			return fmt.Errorf("scan devices: %w", err)
		}
		printDevices(cmd.OutOrStdout(), devices)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	addCmd.Flags().StringP("output", "o", "", "Output directory, inside the daemon's download directory")
	addCmd.Flags().StringP("name", "n", "", "File name for a single URL")
	addCmd.Flags().BoolP("clipboard", "c", false, "Also read URLs from the clipboard")
	lsCmd.Flags().Bool("json", false, "Print records as JSON")
	usbCmd.Flags().Bool("probe", false, "Send ADB/Fastboot probe commands (default from settings)")

	rootCmd.AddCommand(addCmd, lsCmd, pauseCmd, resumeCmd, rmCmd, clearCmd, usbCmd)
}

// urlsFromText picks the http(s) URLs out of free text such as clipboard
// contents.
func urlsFromText(text string) []string {
	var urls []string
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			urls = append(urls, field)
		}
	}
	return urls
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printRecords(w io.Writer, records []types.DownloadRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No downloads.")
		return
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "NAME", "STATUS", "PROGRESS", "SPEED", "ETA").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range records {
		t.Row(shortID(r.ID), r.Name, registry.StatusText(r), registry.ProgressText(r), registry.SpeedText(r), registry.ETAText(r))
	}
	fmt.Fprintln(w, t.Render())
}

func printDevices(w io.Writer, devices []usb.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No USB serial devices found.")
		return
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("PORT", "KIND", "VID:PID", "PRODUCT", "SERIAL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, d := range devices {
		t.Row(d.Name, string(d.Kind), d.VendorID+":"+d.ProductID, d.Product, d.SerialNumber)
	}
	fmt.Fprintln(w, t.Render())
}
