package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/strata"
)

func newInspectCmd(c *cli) *cobra.Command {
	var (
		decrypt   []string
		localized []string
		locale    string
	)
	cmd := &cobra.Command{
		Use:   "inspect <collection> <key>",
		Short: "Print a stored document, optionally unlocking fields",
		Long: `Inspect prints the document stored under key. Fields named with
--decrypt are decrypted with the configured key, and fields named with
--localized are resolved to --locale (or the fallback locale). Other fields
are printed in stored form.

Example:
  strata inspect account 0190c7a2-... --decrypt secret
  strata inspect article 42 --localized title --locale fr`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}

			et, err := c.inspectType(args[0], decrypt, localized)
			if err != nil {
				return err
			}
			model, err := strata.NewModel(ctx, store, et)
			if err != nil {
				return err
			}
			e, err := model.Get(ctx, args[1])
			if errors.Is(err, strata.ErrNotFound) {
				return fmt.Errorf("document %q not found in %q", args[1], args[0])
			}
			if err != nil {
				return err
			}
			if len(localized) > 0 {
				if locale == "" {
					locale = c.cfg.Localize.FallbackLocale
				}
				if err := e.SelectLocale(locale, localized...); err != nil {
					return err
				}
			}

			out, err := e.ToStorage(ctx)
			if err != nil {
				return err
			}
			for _, f := range append(append([]string(nil), decrypt...), localized...) {
				v, err := e.Get(f)
				if err != nil {
					return fmt.Errorf("unlock %s: %w", f, err)
				}
				out[f] = v
			}
			return c.print(cmd, out)
		},
	}
	cmd.Flags().StringSliceVar(&decrypt, "decrypt", nil, "fields to decrypt")
	cmd.Flags().StringSliceVar(&localized, "localized", nil, "localized fields to resolve")
	cmd.Flags().StringVar(&locale, "locale", "", "locale for --localized fields (default: localize.fallback_locale)")
	return cmd
}

// inspectType builds an ad-hoc entity type for collection with the given
// encrypted and localized fields.
func (c *cli) inspectType(collection string, decrypt, localized []string) (*strata.EntityType, error) {
	et, err := strata.NewRegistry().Define(collection)
	if err != nil {
		return nil, err
	}
	if len(decrypt) > 0 {
		enc, err := c.cfg.NewEncrypt()
		if err != nil {
			return nil, err
		}
		for _, f := range decrypt {
			if err := et.Attach(f, enc); err != nil {
				return nil, err
			}
		}
	}
	loc := c.cfg.NewLocalize()
	for _, f := range localized {
		if err := et.Attach(f, loc); err != nil {
			return nil, err
		}
	}
	return et, nil
}
