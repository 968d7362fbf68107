package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GTDGit/dealfinder/internal/service"
	"github.com/GTDGit/dealfinder/internal/utils"
)

// dealfinderctl issues the secrets the API reads from its environment.
func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "dealfinderctl",
		Short:         "Operator tools for the dealfinder API",
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.AddCommand(newKeygenCmd(), newHashPasswordCmd(in))
	return root
}

func newKeygenCmd() *cobra.Command {
	var (
		prefix string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate API keys for API_KEYS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return errors.New("count must be positive")
			}
			keys := make([]string, 0, count)
			for i := 0; i < count; i++ {
				key, err := utils.GenerateAPIKey(prefix)
				if err != nil {
					return fmt.Errorf("failed to generate key: %w", err)
				}
				keys = append(keys, key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, ","))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", utils.APIKeyPrefix, "key prefix")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of keys")
	return cmd
}

func newHashPasswordCmd(in io.Reader) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(in).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is empty")
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
