package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/tui"
)

var connectCmd = &cobra.Command{
	Use:   "connect [host:port]",
	Short: "Connect the dashboard to a running rockdl daemon",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := resolveHostTarget()
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" {
			port := readActivePort()
			if port <= 0 {
				return errors.New("no active rockdl daemon found locally; usage: rockdl connect <host:port>")
			}
			target = fmt.Sprintf("127.0.0.1:%d", port)
		}

		insecureHTTP, _ := cmd.Flags().GetBool("insecure-http")
		baseURL, err := resolveConnectBaseURL(target, insecureHTTP)
		if err != nil {
			return err
		}
		token, err := resolveTokenForTarget(target)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", baseURL)
		service := core.NewRemoteDownloadService(baseURL, token)
		defer func() { _ = service.Shutdown() }()

		if _, err := service.List(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		// Settings belong to the daemon; the dashboard edits a local copy.
		return tui.Run(service, nil)
	},
}

func init() {
	connectCmd.Flags().Bool("insecure-http", false, "Allow plain HTTP for non-loopback targets")
	rootCmd.AddCommand(connectCmd)
}

func resolveConnectBaseURL(target string, allowInsecureHTTP bool) (string, error) {
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid target: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q (use http or https)", u.Scheme)
		}
		if u.Host == "" {
			return "", errors.New("invalid target: missing host")
		}
		if u.Scheme == "http" && !allowInsecureHTTP && !isLoopbackHost(u.Hostname()) {
			return "", errors.New("refusing insecure HTTP for non-loopback target; use https:// or --insecure-http")
		}
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
	}

	scheme := "https"
	if allowInsecureHTTP || isLoopbackHost(hostnameFromTarget(target)) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, target), nil
}

func hostnameFromTarget(target string) string {
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return target
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
