package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const redacted = "***"

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			if err := c.build(); err != nil {
				return err
			}
			eff := *c.cfg
			if eff.Encrypt.SecretKey != "" {
				eff.Encrypt.SecretKey = redacted
			}
			return c.print(cmd, map[string]any{
				"hash":     map[string]any{"algorithm": eff.Hash.Algorithm},
				"encrypt":  map[string]any{"algorithm": eff.Encrypt.Algorithm, "secret_key": eff.Encrypt.SecretKey, "iv_size": eff.Encrypt.IVSize},
				"localize": map[string]any{"fallback_locale": eff.Localize.FallbackLocale},
				"store":    map[string]any{"driver": eff.Store.Driver, "dsn": eff.Store.DSN, "database": eff.Store.Database, "codec": eff.Store.Codec},
			})
		},
	})
	return cmd
}

// build constructs every configured transformation and the codec.
func (c *cli) build() error {
	if _, err := c.cfg.NewHash(); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if c.cfg.Encrypt.SecretKey != "" {
		if _, err := c.cfg.NewEncrypt(); err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
	} else {
		c.log.Warn("encrypt.secret_key is not set; encrypted fields cannot be read")
	}
	c.cfg.NewLocalize()
	if _, err := c.cfg.Codec(); err != nil {
		return err
	}
	c.log.WithField("driver", c.cfg.Store.Driver).Debug("configuration is valid")
	return nil
}
