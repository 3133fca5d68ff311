// Package analyze implements the `safecity analyze` subcommand: one-shot
// text classification with the result forwarded to the record store.
package analyze

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/backend"
	"github.com/safecity/safecity-go/internal/classifier"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

// Command returns the analyze subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Classify a text snippet for threats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, userID, args[0])
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Account the record is filed under")
	return cmd
}

func run(ctx context.Context, settings *conf.Settings, userID, text string) error {
	if text == "" {
		return errors.Newf("nothing to analyze").
			Component("analyze").
			Category(errors.CategoryValidation).
			Build()
	}

	log := logging.ForService("analyze")
	if log == nil {
		log = slog.Default()
	}

	httpClient := httpclient.New(nil)
	defer httpClient.Close()

	provider := classifier.NewGeminiProvider(settings, httpClient)
	client := classifier.NewClient(provider, settings, nil)

	result := client.ClassifyText(ctx, text)
	profile := alert.ProfileFor(result.Level)

	fmt.Printf("%s\n%s\n", profile.Title, result.Reason)

	// Forwarding is best-effort, the classification already happened.
	if userID != "" {
		obs := threat.NewObservation(userID, threat.InputText, result.Level, result.Reason)
		obs.Summary = text
		backendClient := backend.NewClient(settings, httpClient)
		if err := backendClient.SaveIncident(ctx, obs); err != nil {
			log.Warn("record forward failed", "error", err)
		}
	}

	return nil
}
