package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/vchigne/sage/internal/cli/render"
	"github.com/vchigne/sage/internal/cli/ui"
	"github.com/vchigne/sage/internal/gate"
	"github.com/vchigne/sage/internal/schema"
)

var (
	validateSenderID       string
	validateChannel        string
	validateAPIKey         string
	validateEnvelopeSender string
	validateSourceHost     string
)

var validateSenderCmd = &cobra.Command{
	Use:   "validate-sender <sender-doc> <package-name>",
	Short: "run the Sender Gate's authorization checks (§4.6) only",
	Long: `Checks whether a sender is authorized to submit a given package over a
given channel, without decoding or validating any data: identity, package
authorization, channel allow-list, submission deadline, and channel
credentials, in that order.`,
	Example: `  # Non-interactive: all identity known up front
  $ sagectl validate-sender sender.yaml customer_package --sender-id acme --channel api

  # Missing --sender-id/--channel fall into an interactive prompt
  $ sagectl validate-sender sender.yaml customer_package`,
	Args: cobra.ExactArgs(2),
	RunE: runValidateSender,
}

func init() {
	validateSenderCmd.Flags().StringVar(&validateSenderID, "sender-id", "", "sender_id to check")
	validateSenderCmd.Flags().StringVar(&validateChannel, "channel", "", "submission channel (sftp, email, api, filesystem, direct_upload)")
	validateSenderCmd.Flags().StringVar(&validateAPIKey, "api-key", "", "api_key, when channel=api")
	validateSenderCmd.Flags().StringVar(&validateEnvelopeSender, "envelope-sender", "", "envelope sender address, when channel=email")
	validateSenderCmd.Flags().StringVar(&validateSourceHost, "source-host", "", "source host, when channel=sftp")
}

func runValidateSender(cmd *cobra.Command, args []string) error {
	senderDoc, packageName := args[0], args[1]

	if validateSenderID == "" {
		if err := survey.AskOne(&survey.Input{Message: "sender_id:"}, &validateSenderID, survey.WithValidator(survey.Required)); err != nil {
			return fmt.Errorf("input failed")
		}
	}
	if validateChannel == "" {
		if err := survey.AskOne(&survey.Select{
			Message: "channel:",
			Options: []string{"api", "sftp", "email", "filesystem", "direct_upload"},
		}, &validateChannel); err != nil {
			return fmt.Errorf("input failed")
		}
	}

	sch, diag := schema.Load(schema.OSFileLoader{}, []string{senderDoc})
	if diag.HasErrors() {
		render.Findings(os.Stdout, diag)
		os.Exit(1)
	}

	sub := gate.Submission{
		SenderID:       validateSenderID,
		PackageName:    packageName,
		Channel:        validateChannel,
		ReceivedAt:     time.Now(),
		APIKey:         validateAPIKey,
		EnvelopeSender: validateEnvelopeSender,
		SourceHost:     validateSourceHost,
	}

	result := gate.Check(sch, sub)
	render.Findings(os.Stdout, result)
	fmt.Println()
	render.Summary(os.Stdout, result)

	if result.HasErrors() {
		os.Exit(1)
	}
	ui.PrintSuccess("sender '%s' is authorized to submit '%s' over '%s'", validateSenderID, packageName, validateChannel)
	return nil
}
