// Package wembedcmder is the root wembed command.
package wembedcmder

import (
	"github.com/spf13/cobra"

	versioncmder "github.com/papercomputeco/wembeddings/cmd/version"
	computecmder "github.com/papercomputeco/wembeddings/cmd/wembed/compute"
	configcmder "github.com/papercomputeco/wembeddings/cmd/wembed/config"
	modelscmder "github.com/papercomputeco/wembeddings/cmd/wembed/models"
	servecmder "github.com/papercomputeco/wembeddings/cmd/wembed/serve"
	embeddingutils "github.com/papercomputeco/wembeddings/pkg/embeddings/utils"
)

const wembedLongDesc string = `wembed computes contextual word embeddings for CoNLL-U corpora
with pretrained multilingual transformers.

Compute embeddings using:
  wembed compute in.conllu out.npz              Run the model locally
  wembed compute in.conllu out.npz -s host:8000 Use a running wembed server
  wembed serve                                  Serve embeddings over HTTP`

const wembedShortDesc string = "wembed - contextual word embeddings"

func NewWembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wembed",
		Short:        wembedShortDesc,
		Long:         wembedLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .wembed/ config directory")

	// Add subcommands
	cmd.AddCommand(computecmder.NewComputeCmd(embeddingutils.NewEmbedder))
	cmd.AddCommand(servecmder.NewServeCmd(embeddingutils.NewEmbedder))
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
