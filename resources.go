package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// reauthorizeHint matches the message the tool has always printed when the
// config is absent or incomplete. Resource commands exit 0 in that case; the
// instruction is guidance, not a failure.
const reauthorizeHint = `Missing config information, please run "misfit authorize"`

type resourceOptions struct {
	userID    string
	objectID  string
	startDate string
	endDate   string
	detail    bool
}

// runResource gates a resource fetch on complete credentials, then
// pretty-prints the JSON result.
func runResource(
	ctx context.Context,
	opts resourceOptions,
	fetch func(context.Context, *Client, resourceOptions) (json.RawMessage, error),
) error {
	creds, err := loadCredentials(configPath)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			fmt.Println(reauthorizeHint)
			return nil
		}
		return err
	}

	base, err := apiBaseURL()
	if err != nil {
		return err
	}
	client, err := NewClient(base, creds.AccessToken, opts.userID)
	if err != nil {
		return err
	}

	result, err := fetch(ctx, client, opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		// Not valid JSON; print the body as-is rather than hide it.
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

// newResourceCommand wires the flags and the credential gate shared by all
// resource verbs.
func newResourceCommand(
	use, short string,
	fetch func(context.Context, *Client, resourceOptions) (json.RawMessage, error),
) (*cobra.Command, *resourceOptions) {
	opts := &resourceOptions{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(cmd.Context(), *opts, fetch)
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user_id", "", "Misfit User ID (default: the token owner)")
	return cmd, opts
}

// addRangeOrObjectFlags enforces the (--start_date --end_date | --object_id)
// grammar shared by goal, session and sleep.
func addRangeOrObjectFlags(cmd *cobra.Command, opts *resourceOptions) {
	cmd.Flags().StringVar(&opts.objectID, "object_id", "", "ID of a single Misfit object")
	cmd.Flags().StringVar(&opts.startDate, "start_date", "", "Date at the start of a range, e.g. 2014-11-20")
	cmd.Flags().StringVar(&opts.endDate, "end_date", "", "Date at the end of a range, e.g. 2014-11-30")
	cmd.MarkFlagsRequiredTogether("start_date", "end_date")
	cmd.MarkFlagsMutuallyExclusive("object_id", "start_date")
	cmd.MarkFlagsMutuallyExclusive("object_id", "end_date")
	cmd.MarkFlagsOneRequired("object_id", "start_date")
}

func init() {
	profileCmd, profileOpts := newResourceCommand(
		"profile",
		"Fetch the user profile",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Profile(ctx, opts.objectID)
		},
	)
	profileCmd.Flags().StringVar(&profileOpts.objectID, "object_id", "", "ID of a single Misfit object")

	deviceCmd, deviceOpts := newResourceCommand(
		"device",
		"Fetch the user's device",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Device(ctx, opts.objectID)
		},
	)
	deviceCmd.Flags().StringVar(&deviceOpts.objectID, "object_id", "", "ID of a single Misfit object")

	goalCmd, goalOpts := newResourceCommand(
		"goal",
		"Fetch activity goals for a date range or by ID",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Goals(ctx, opts.startDate, opts.endDate, opts.objectID)
		},
	)
	addRangeOrObjectFlags(goalCmd, goalOpts)

	summaryCmd, summaryOpts := newResourceCommand(
		"summary",
		"Fetch the activity summary for a date range",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Summary(ctx, opts.startDate, opts.endDate, opts.detail)
		},
	)
	summaryCmd.Flags().StringVar(&summaryOpts.startDate, "start_date", "", "Date at the start of a range, e.g. 2014-11-20")
	summaryCmd.Flags().StringVar(&summaryOpts.endDate, "end_date", "", "Date at the end of a range, e.g. 2014-11-30")
	summaryCmd.Flags().BoolVar(&summaryOpts.detail, "detail", false, "Print summary detail for each day")
	_ = summaryCmd.MarkFlagRequired("start_date")
	_ = summaryCmd.MarkFlagRequired("end_date")

	sessionCmd, sessionOpts := newResourceCommand(
		"session",
		"Fetch activity sessions for a date range or by ID",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Sessions(ctx, opts.startDate, opts.endDate, opts.objectID)
		},
	)
	addRangeOrObjectFlags(sessionCmd, sessionOpts)

	sleepCmd, sleepOpts := newResourceCommand(
		"sleep",
		"Fetch sleep records for a date range or by ID",
		func(ctx context.Context, c *Client, opts resourceOptions) (json.RawMessage, error) {
			return c.Sleeps(ctx, opts.startDate, opts.endDate, opts.objectID)
		},
	)
	addRangeOrObjectFlags(sleepCmd, sleepOpts)

	rootCmd.AddCommand(profileCmd, deviceCmd, goalCmd, summaryCmd, sessionCmd, sleepCmd)
}
