package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easyapply-engine/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials stored in the OS keychain",
}

var secretsSetCmd = &cobra.Command{
	Use:       "set <linkedin|gemini|mail>",
	Short:     "Store a password or API key in the OS keychain",
	Long:      "Reads the secret from the first line of stdin and stores it under the account derived from the config.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: secrets.Kinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := secrets.Account(args[0], cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s secret for %s: ", args[0], acct)
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret: %w", err)
		}
		if err := secrets.Set(acct, strings.TrimRight(line, "\r\n")); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s in keychain service %q\n", acct, secrets.KeyringService)
		return nil
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:       "delete <linkedin|gemini|mail>",
	Short:     "Remove a stored secret",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: secrets.Kinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := secrets.Account(args[0], cfg)
		if err != nil {
			return err
		}
		return secrets.Delete(acct)
	},
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd)
}
