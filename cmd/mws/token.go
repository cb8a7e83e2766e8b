package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/dominhhai/mws-sdk/adapters/hasher"
	"github.com/spf13/cobra"
)

var tokenCost int

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [TOKEN]",
	Short: "Hash a relay access token for server.token_hash",
	Long: `Prints the bcrypt hash of TOKEN, or of the first line of stdin when
TOKEN is omitted. Put the hash in server.token_hash (or MWS_SERVER_TOKEN_HASH)
and send the token as "Authorization: Bearer TOKEN".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashToken,
}

func init() {
	hashTokenCmd.Flags().IntVar(&tokenCost, "cost", 0, "bcrypt cost (default 10)")
	rootCmd.AddCommand(hashTokenCmd)
}

func runHashToken(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return errors.New("token must not be empty")
	}

	hash, err := hasher.NewBcrypt(tokenCost).Hash(token)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}
