package cli

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatTree  OutputFormat = "tree"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// OutputFlags provides output formatting flags.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: table, tree, json, yaml." enum:"table,tree,json,yaml" default:"table"`
}

// Format returns the selected format.
func (f *OutputFlags) Format() OutputFormat {
	switch OutputFormat(f.Output) {
	case OutputFormatTree, OutputFormatJSON, OutputFormatYAML:
		return OutputFormat(f.Output)
	default:
		return OutputFormatTable
	}
}
