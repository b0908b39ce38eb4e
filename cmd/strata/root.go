package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zoobzio/strata"
	"github.com/zoobzio/strata/config"
)

// cli holds flag values and the state shared by subcommands.
type cli struct {
	configFile string
	envFile    string
	logLevel   string
	jsonOut    bool

	cfg   *config.Config
	log   *logrus.Logger
	store strata.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{log: logrus.New()}
	c.log.SetOutput(os.Stderr)

	root := &cobra.Command{
		Use:           "strata",
		Short:         "Inspect and manage strata document stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./strata.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output as JSON")

	root.AddCommand(newKeygenCmd(c))
	root.AddCommand(newConfigCmd(c))
	root.AddCommand(newInspectCmd(c))
	root.AddCommand(newIndexesCmd(c))
	return root
}

// setup configures logging and loads the configuration.
func (c *cli) setup() error {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	c.log.SetLevel(level)
	if c.jsonOut {
		c.log.SetFormatter(&logrus.JSONFormatter{})
	}

	var opts []config.Option
	if c.envFile != "" {
		opts = append(opts, config.WithEnvFile(c.envFile))
	}
	cfg, err := config.Load(c.configFile, opts...)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log.WithFields(logrus.Fields{
		"driver": cfg.Store.Driver,
		"codec":  cfg.Store.Codec,
	}).Debug("configuration loaded")
	return nil
}

// openStore opens the configured store once per invocation.
func (c *cli) openStore(ctx context.Context) (strata.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := c.cfg.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c.log.WithField("driver", c.cfg.Store.Driver).Debug("store opened")
	c.store = s
	return s, nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// print writes v as indented JSON with --json, else as YAML.
func (c *cli) print(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
