// Package configcmder provides the config command for managing persistent
// wembed configuration stored in the .wembed/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent wembed configuration.

Configuration is stored as config.toml in the .wembed/ directory and provides
default values for command flags. CLI flags and WEMBED_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  compute.model, compute.batch_size, compute.dtype, compute.threads,
  compute.max_form_len, output.compression, models.dir,
  runtime.onnxruntime_lib, server.listen, server.dtype, server.models,
  client.target

Use subcommands to get, set, or list configuration values:
  wembed config set <key> <value>    Set a configuration value
  wembed config get <key>            Get a configuration value
  wembed config list                 List all configuration values

Examples:
  wembed config set compute.model xlm-roberta-base-last4
  wembed config set models.dir /srv/wembed/models
  wembed config get compute.dtype
  wembed config list`

const configShortDesc string = "Manage persistent wembed configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
