package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reengage-labs/campaign-cli/internal/gateway"
	"github.com/reengage-labs/campaign-cli/internal/resilience"
	"github.com/reengage-labs/campaign-cli/pkg/waha"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Interact with the WhatsApp gateway",
}

// gatewaySender wraps the configured WAHA client with retry, circuit
// breaking, and send-rate pacing.
func gatewaySender() *gateway.Sender {
	client := waha.NewClient(cfg.Waha.APIKey, waha.WithBaseURL(cfg.Waha.BaseURL))
	breakers := resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig())
	return gateway.NewSender(client, cfg.Waha.Session, breakers)
}

// -- send text --

var sendTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Send a single test message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("send"); err != nil {
			return err
		}

		to, _ := cmd.Flags().GetString("to")
		text, _ := cmd.Flags().GetString("text")
		if to == "" || text == "" {
			return eris.New("send text: --to and --text are required")
		}

		resp, err := gatewaySender().SendText(cmd.Context(), to, text)
		if err != nil {
			return eris.Wrap(err, "send text")
		}

		fmt.Printf("Sent %s\n", resp.ID)
		return nil
	},
}

// -- send status --

var sendStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway session status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("send"); err != nil {
			return err
		}

		info, err := gatewaySender().SessionStatus(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "send status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	sendTextCmd.Flags().String("to", "", "recipient phone number")
	sendTextCmd.Flags().String("text", "", "message text")

	sendCmd.AddCommand(sendTextCmd)
	sendCmd.AddCommand(sendStatusCmd)
	rootCmd.AddCommand(sendCmd)
}
