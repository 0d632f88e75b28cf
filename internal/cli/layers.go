package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/esfilter/internal/config"
	"github.com/roach88/esfilter/internal/schema"
)

// LayerOutput describes one configured layer.
type LayerOutput struct {
	Name       string                 `json:"name"`
	Index      string                 `json:"index"`
	DocType    string                 `json:"type,omitempty"`
	Attributes []schema.AttributeSpec `json:"attributes"`
}

// NewLayersCommand creates the layers command.
func NewLayersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "layers",
		Short:         "List configured layers and their attributes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayers(rootOpts, cmd)
		},
	}
}

func runLayers(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return report(out, ErrCodeConfig, ExitCommandError, "loading config", err)
	}
	catalog, err := schema.LoadFile(cfg.Layers.Path)
	if err != nil {
		return report(out, ErrCodeLayer, ExitCommandError, "loading layers", err)
	}

	layers := make([]LayerOutput, 0, len(catalog.Names()))
	var rows [][]string
	for _, name := range catalog.Names() {
		l, _ := catalog.Layer(name)
		lo := LayerOutput{Name: l.Name, Index: l.Index, DocType: l.DocType}
		for _, a := range l.Schema.Attributes() {
			spec := schema.AttributeSpec{
				Name:     a.Name,
				Type:     string(a.Type),
				Geometry: string(a.Geometry),
				Analyzed: a.Analyzed,
			}
			lo.Attributes = append(lo.Attributes, spec)
			rows = append(rows, []string{l.Name, l.Index, a.Name, describe(spec)})
		}
		layers = append(layers, lo)
	}

	if out.JSON() {
		return out.Success(layers, "")
	}
	return out.Table([]string{"Layer", "Index", "Attribute", "Type"}, rows)
}

func describe(a schema.AttributeSpec) string {
	switch {
	case a.Geometry != "":
		return a.Type + " (" + a.Geometry + ")"
	case a.Analyzed:
		return a.Type + " (analyzed)"
	}
	return a.Type
}
