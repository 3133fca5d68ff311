// Package records implements the `safecity records` subcommand: log in to
// the backend and print the account's analysis history.
package records

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/safecity/safecity-go/internal/backend"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
)

type options struct {
	username string
	password string
}

// Command returns the records subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print the account's analysis history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Backend account username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "Backend account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, opts *options) error {
	httpClient := httpclient.New(nil)
	defer httpClient.Close()

	client := backend.NewClient(settings, httpClient)
	return fetchAndPrint(ctx, client, os.Stdout, opts)
}

func fetchAndPrint(ctx context.Context, client *backend.Client, w io.Writer, opts *options) error {
	resp, err := client.Login(ctx, opts.username, opts.password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !resp.Success || resp.User == nil {
		return errors.Newf("login rejected: %s", resp.Message).
			Component("records").
			Category(errors.CategoryAuth).
			Build()
	}

	records, err := client.Records(ctx, resp.User.ID)
	if err != nil {
		return fmt.Errorf("fetching records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(w, "%s  %-5s  %-8s  %s\n",
			r.Timestamp.Format(time.RFC3339), r.Type, r.ThreatLevel, r.ContentSnippet)
	}
	return nil
}
