package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/utils"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the auth token used by the rockdl daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := ensureAuthToken()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func tokenPath() string {
	return filepath.Join(config.GetRuntimeDir(), "token")
}

// ensureAuthToken returns the persisted API token, creating one on first use.
func ensureAuthToken() (string, error) {
	if data, err := os.ReadFile(tokenPath()); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	if err := config.EnsureDirs(); err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := os.WriteFile(tokenPath(), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	utils.Debug("Generated new API token")
	return token, nil
}
