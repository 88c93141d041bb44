// Package modelscmder provides the models command, which lists the embedding
// model registry.
package modelscmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/wembeddings/pkg/cliui"
	"github.com/papercomputeco/wembeddings/pkg/config"
	"github.com/papercomputeco/wembeddings/pkg/models"
)

const modelsLongDesc string = `List the embedding models wembed knows how to run.

Each model names a pretrained transformer and the slice of hidden state
layers averaged into the word embedding. The artifact column shows whether
<models-dir>/<pretrained id>/model.onnx exists.`

const modelsShortDesc string = "List available embedding models"

func NewModelsCmd() *cobra.Command {
	var modelsDir string

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagModelsDir})

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return err
			}
			dir := cfger.ModelsDir(&config.Config{
				Models: config.ModelsConfig{Dir: v.GetString("models.dir")},
			})

			return runList(cmd.OutOrStdout(), models.Default(), dir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModelsDir, &modelsDir)

	return cmd
}

func runList(w io.Writer, registry *models.Registry, modelsDir string) error {
	rows := make([][]string, 0, len(registry.Names()))
	for _, m := range registry.Models() {
		rows = append(rows, []string{
			m.Name,
			m.PretrainedID,
			layers(m),
			artifact(m, modelsDir),
		})
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Models dir:"),
		cliui.DimStyle.Render(modelsDir),
	)
	fmt.Fprintln(w, cliui.Table([]string{"NAME", "PRETRAINED", "LAYERS", "ARTIFACT"}, rows))
	return nil
}

func layers(m models.Model) string {
	end := ""
	if m.LayerEnd != 0 {
		end = strconv.Itoa(m.LayerEnd)
	}
	return fmt.Sprintf("[%d:%s]", m.LayerStart, end)
}

func artifact(m models.Model, modelsDir string) string {
	if modelsDir == "" {
		return cliui.DimStyle.Render("-")
	}
	if _, err := os.Stat(filepath.Join(m.Dir(modelsDir), "model.onnx")); err != nil {
		return cliui.FailMark + " missing"
	}
	return cliui.SuccessMark + " found"
}
