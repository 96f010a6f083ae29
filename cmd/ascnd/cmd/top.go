package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ascnd/core"
)

func newTopCmd(opts *options) *cobra.Command {
	var (
		limit  int32
		offset uint32
		period string
		view   string
	)

	cmd := &cobra.Command{
		Use:   "top <leaderboard>",
		Short: "List a page of a leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &core.GetLeaderboardRequest{LeaderboardID: args[0]}
			if cmd.Flags().Changed("limit") {
				req.Limit = core.Ptr(limit)
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = core.Ptr(offset)
			}
			if period != "" {
				req.Period = core.Ptr(period)
			}
			if view != "" {
				req.ViewSlug = core.Ptr(view)
			}

			client, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.GetLeaderboard(cmd.Context(), req)
			if err != nil {
				return err
			}
			printLeaderboard(cmd, resp)
			return nil
		},
	}

	cmd.Flags().Int32Var(&limit, "limit", core.DefaultLimit, "entries per page (1-100)")
	cmd.Flags().Uint32Var(&offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&period, "period", "", `"current", "previous" or an RFC 3339 timestamp`)
	cmd.Flags().StringVar(&view, "view", "", "view slug")
	return cmd
}

func printLeaderboard(cmd *cobra.Command, resp *core.GetLeaderboardResponse) {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)

	title := fmt.Sprintf("%d players, period from %s", resp.TotalEntries, resp.PeriodStart.Format(time.RFC3339))
	if resp.PeriodEnd != nil {
		title += " to " + resp.PeriodEnd.Format(time.RFC3339)
	}
	if resp.View != nil {
		title += fmt.Sprintf(" (view %s)", resp.View.Slug)
	}
	fmt.Fprintln(out, cyan.Sprint(title))

	if len(resp.Entries) == 0 {
		fmt.Fprintln(out, color.HiBlackString("no entries"))
		return
	}
	for _, e := range resp.Entries {
		fmt.Fprintf(out, "%5s  %-24s %12s  %s\n",
			"#"+strconv.FormatUint(uint64(e.Rank), 10), e.PlayerID, strconv.FormatInt(e.Score, 10), bracketLabel(e.Bracket))
	}
	if resp.HasMore {
		fmt.Fprintln(out, color.HiBlackString("more entries available, use --offset"))
	}
}
