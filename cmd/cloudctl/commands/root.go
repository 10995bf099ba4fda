// Package commands implements the cloudctl command tree. Every leaf command
// resolves to exactly one dispatcher action, so the CLI and the HTTP API stay
// behaviorally identical.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/cloud/registry"
	"github.com/Riley94/multi-cloud-manager/internal/config"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
)

// Flag names shared across subcommands
const (
	flagProvider    = "provider"
	flagRegion      = "region"
	flagName        = "name"
	flagMachineType = "machine-type"
	flagImage       = "image"
	flagPowerState  = "power-state"
	flagLabel       = "label"
	flagMetadata    = "metadata"
)

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudctl",
		Short: "Manage VM instances and buckets across cloud providers",
		Long: `cloudctl drives the same provider dispatch layer the web UI uses,
against the providers declared in the cloud configuration file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP(flagProvider, "p", "", "Provider name (aws|gcp|mock)")
	root.PersistentFlags().String("cloud-config", "", "Path to the cloud configuration file (default $CLOUD_CONFIG or config/cloud.yaml)")

	root.AddCommand(providersCmd())
	root.AddCommand(instancesCmd())
	root.AddCommand(bucketsCmd())
	root.AddCommand(imagesCmd())
	return root
}

// newDispatcher loads configuration and constructs adapters for one command
// invocation.
func newDispatcher(cmd *cobra.Command) (*cloud.Dispatcher, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	if path, _ := cmd.Flags().GetString("cloud-config"); path != "" {
		cfg.CloudConfigPath = path
	}
	cc, err := config.LoadCloud(cfg.CloudConfigPath)
	if err != nil {
		return nil, err
	}
	logging.SetLevel("error") // keep CLI output clean
	logger := logging.New(cfg.Env)
	return registry.Dispatcher(cmd.Context(), cc, logger), nil
}

func providerFlag(cmd *cobra.Command) (cloud.Provider, error) {
	p, err := cmd.Flags().GetString(flagProvider)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("--%s is required", flagProvider)
	}
	return cloud.Provider(p), nil
}

// runDispatch executes one action and renders the result as indented JSON.
// A failed operation exits nonzero after printing the normalized result.
func runDispatch(cmd *cobra.Command, action cloud.Action, p cloud.Params) error {
	provider, err := providerFlag(cmd)
	if err != nil {
		return err
	}
	d, err := newDispatcher(cmd)
	if err != nil {
		return err
	}
	res := d.Dispatch(context.Background(), provider, action, p)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !res.Success {
		os.Exit(1)
	}
	return nil
}

// parseLabels turns repeated key=value flags into a map.
func parseLabels(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := map[string]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("label %q is not key=value", p)
		}
		m[k] = v
	}
	return m, nil
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers and their regions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDispatcher(cmd)
			if err != nil {
				return err
			}
			type info struct {
				Name    string   `json:"name"`
				Regions []string `json:"regions"`
			}
			var out []info
			for _, p := range d.Providers() {
				out = append(out, info{Name: string(p), Regions: d.Regions(p)})
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
}
