package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-sync/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:         "hash-password",
	Short:       "Hash an operator password read from stdin for AUTH_OPERATOR_PASSWORD_HASH",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			return errors.New("empty password")
		}
		cost, _ := cmd.Flags().GetInt("cost")
		hash, err := auth.HashPassword(password, cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashPasswordCmd.Flags().Int("cost", 0, "bcrypt cost (0 uses the default)")
	rootCmd.AddCommand(hashPasswordCmd)
}
