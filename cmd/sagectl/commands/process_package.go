package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/vchigne/sage/internal/cli/render"
	"github.com/vchigne/sage/internal/cli/ui"
	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/reader"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/validate"
)

var processSenderID string

var processPackageCmd = &cobra.Command{
	Use:   "process-package <archive-path> <package-doc>",
	Short: "run the Reader and Validator end to end, without the Sink (§4.4)",
	Long: `Decodes archive-path per package-doc's declared format, then runs the
field → row → catalog → package validation scopes. Never touches a
Destination; use the HTTP intake adapter for full Process semantics.`,
	Example: `  $ sagectl process-package customers_20260806.zip package.yaml`,
	Args:    cobra.MaximumNArgs(2),
	RunE:    runProcessPackage,
}

func init() {
	processPackageCmd.Flags().StringVar(&processSenderID, "sender-id", "", "sender_id, substituted into {sender_id} filename placeholders")
}

func runProcessPackage(cmd *cobra.Command, args []string) error {
	for len(args) < 2 {
		var missing string
		prompt := "archive path:"
		if len(args) == 1 {
			prompt = "package document path:"
		}
		if err := survey.AskOne(&survey.Input{Message: prompt}, &missing, survey.WithValidator(survey.Required)); err != nil {
			return fmt.Errorf("input failed")
		}
		args = append(args, missing)
	}
	archivePath, packageDoc := args[0], args[1]

	sch, loadDiag := schema.Load(schema.OSFileLoader{}, []string{packageDoc})
	if loadDiag.HasErrors() {
		render.Findings(os.Stdout, loadDiag)
		os.Exit(1)
	}
	if len(sch.Packages) == 0 {
		ui.PrintError("%s declares no package", packageDoc)
		os.Exit(2)
	}
	pkg := &sch.Packages[0]

	blob, err := os.ReadFile(archivePath)
	if err != nil {
		ui.PrintError("reading %s: %v", archivePath, err)
		os.Exit(2)
	}

	diag := runWithFeedback("validating "+pkg.Name, func() diagnostic.Diagnostic {
		readRes := reader.ReadPackage(pkg, sch, blob, processSenderID, filepath.Base(archivePath))
		var out diagnostic.Diagnostic
		out.Merge(readRes.Diag)
		if readRes.Diag.HasErrors() {
			return out
		}
		out.Merge(validate.Package(sch, pkg, readRes.Tables))
		return out
	})

	render.Findings(os.Stdout, diag)
	fmt.Println()
	render.Summary(os.Stdout, diag)

	if diag.HasErrors() {
		os.Exit(1)
	}
	return nil
}
