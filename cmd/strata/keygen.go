package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/strata"
)

func newKeygenCmd(c *cli) *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encryption key",
		Long: `Keygen prints a random key sized for the encryption algorithm, base64
encoded for use as encrypt.secret_key or STRATA_ENCRYPT_SECRET_KEY.

Example:
  strata keygen
  strata keygen --algorithm xchacha20-poly1305`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if algorithm == "" {
				algorithm = c.cfg.Encrypt.Algorithm
			}
			algo := strata.EncryptAlgo(algorithm)
			key, err := strata.GenerateKey(algo)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			encoded := base64.StdEncoding.EncodeToString(key)
			if !c.jsonOut {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return err
			}
			return c.print(cmd, map[string]any{"algorithm": algo, "key": encoded})
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "encryption algorithm (default: encrypt.algorithm)")
	return cmd
}
