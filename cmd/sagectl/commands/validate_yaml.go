package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vchigne/sage/internal/cli/render"
	"github.com/vchigne/sage/internal/cli/ui"
	"github.com/vchigne/sage/internal/schema"
)

var knownKinds = map[string]bool{"catalog": true, "package": true, "sender": true}

var validateYAMLCmd = &cobra.Command{
	Use:   "validate-yaml <path>... [kind]",
	Short: "structurally validate catalog/package/sender documents",
	Long: `Runs the Schema Loader's structural validation (§4.1) over one or more
YAML documents. Document kind is detected automatically from its top-level
key; passing a trailing kind argument (catalog, package, or sender) cross-
checks that the single preceding document matches what you expect.`,
	Example: `  # Validate a whole schema set together (cross-references resolve)
  $ sagectl validate-yaml catalog.yaml package.yaml sender.yaml

  # Validate one document, asserting its expected kind
  $ sagectl validate-yaml catalog.yaml catalog`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidateYAML,
}

func runValidateYAML(cmd *cobra.Command, args []string) error {
	paths := args
	if len(args) == 2 && knownKinds[args[1]] {
		paths = args[:1]
	}

	sch, diag := schema.Load(schema.OSFileLoader{}, paths)

	render.Findings(os.Stdout, diag)
	fmt.Println()
	render.Summary(os.Stdout, diag)

	if diag.HasErrors() {
		os.Exit(1)
	}
	if len(paths) < len(args) {
		var matches bool
		switch args[1] {
		case "catalog":
			matches = len(sch.Catalogs) > 0 && len(sch.Packages) == 0 && len(sch.Senders) == 0
		case "package":
			matches = len(sch.Packages) > 0
		case "sender":
			matches = len(sch.Senders) > 0
		}
		if !matches {
			ui.PrintError("%s is not a %s document", paths[0], args[1])
			os.Exit(1)
		}
	}
	ui.PrintSuccess("loaded %d catalog(s), %d package(s), %d sender(s)", len(sch.Catalogs), len(sch.Packages), len(sch.Senders))
	return nil
}
