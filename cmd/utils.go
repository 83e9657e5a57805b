package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// readURLsFromFile reads URLs from a file, one per line. Blank lines and
// lines starting with # are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)

	// Long signed URLs exceed the default 64KB token size.
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxCapacity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return urls, nil
}

// collectURLs merges positional arguments with the batch file, if any.
func collectURLs(args []string, batchFile string) ([]string, error) {
	var urls []string
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			urls = append(urls, a)
		}
	}
	if batchFile == "" {
		return urls, nil
	}
	fileURLs, err := readURLsFromFile(batchFile)
	if err != nil {
		return urls, err
	}
	return append(urls, fileURLs...), nil
}

// queueURLs adds every URL to svc and returns the ids that were accepted.
func queueURLs(svc core.DownloadService, urls []string, outputDir string) []string {
	var ids []string
	outputDir = utils.EnsureAbsPath(outputDir)
	for _, u := range urls {
		item, err := DownloadRequest{URL: u, Item: types.Item{Path: outputDir}}.toItem()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %q: %v\n", u, err)
			continue
		}
		id, err := svc.DownloadFile(item)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", u, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func resolveLocalToken() (string, error) {
	if token := strings.TrimSpace(globalToken); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(os.Getenv("ROCKDL_TOKEN")); token != "" {
		return token, nil
	}
	return ensureAuthToken()
}

func resolveHostTarget() string {
	if host := strings.TrimSpace(globalHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv("ROCKDL_HOST"))
}

// resolveTokenForTarget only falls back to the local token file for
// loopback targets.
func resolveTokenForTarget(target string) (string, error) {
	if token := strings.TrimSpace(globalToken); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(os.Getenv("ROCKDL_TOKEN")); token != "" {
		return token, nil
	}
	if isLoopbackHost(hostnameFromTarget(target)) {
		return ensureAuthToken()
	}
	return "", errors.New("no token provided; use --token or set ROCKDL_TOKEN")
}

// resolveAPIConnection returns the base URL and token of the daemon the
// client commands talk to: --host/ROCKDL_HOST, else the local port file.
func resolveAPIConnection() (string, string, error) {
	target := resolveHostTarget()
	if target == "" {
		port := readActivePort()
		if port <= 0 || !isListening(port) {
			return "", "", errors.New("rockdl is not running locally; start it or pass --host (or set ROCKDL_HOST)")
		}
		token, err := resolveLocalToken()
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("http://127.0.0.1:%d", port), token, nil
	}

	baseURL, err := resolveConnectBaseURL(target, false)
	if err != nil {
		return "", "", err
	}
	token, err := resolveTokenForTarget(target)
	if err != nil {
		return "", "", err
	}
	return baseURL, token, nil
}

// remoteService connects to the daemon resolved by resolveAPIConnection.
var remoteService = func() (core.DownloadService, error) {
	baseURL, token, err := resolveAPIConnection()
	if err != nil {
		return nil, err
	}
	return core.NewRemoteDownloadService(baseURL, token), nil
}

// resolveDownloadID expands a unique id prefix into the full id. Unknown
// prefixes are returned unchanged so the daemon reports them as not found.
func resolveDownloadID(svc core.DownloadService, partialID string) (string, error) {
	records, err := svc.List()
	if err != nil {
		return "", fmt.Errorf("failed to list downloads: %w", err)
	}
	candidates := make([]string, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, r.ID)
	}
	return resolveIDFromCandidates(partialID, candidates)
}

func resolveIDFromCandidates(partialID string, candidates []string) (string, error) {
	var matches []string
	seen := make(map[string]bool)

	for _, id := range candidates {
		if id == partialID {
			return id, nil
		}
		if strings.HasPrefix(id, partialID) && !seen[id] {
			matches = append(matches, id)
			seen[id] = true
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous ID prefix '%s' matches %d downloads", partialID, len(matches))
	}
	return partialID, nil
}
