package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ascnd/core"
)

func newRankCmd(opts *options) *cobra.Command {
	var period, view string

	cmd := &cobra.Command{
		Use:   "rank <leaderboard> <player>",
		Short: "Show one player's standing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &core.GetPlayerRankRequest{LeaderboardID: args[0], PlayerID: args[1]}
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

			resp, err := client.GetPlayerRank(cmd.Context(), req)
			if err != nil {
				return err
			}
			printRank(cmd, args[1], resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", `"current", "previous" or an RFC 3339 timestamp`)
	cmd.Flags().StringVar(&view, "view", "", "view slug")
	return cmd
}

func printRank(cmd *cobra.Command, player string, resp *core.GetPlayerRankResponse) {
	out := cmd.OutOrStdout()
	if !resp.Ranked() {
		fmt.Fprintf(out, "%s is unranked (%d players)\n", player, resp.TotalEntries)
		return
	}

	green := color.New(color.FgGreen)
	fmt.Fprintf(out, "%s  %s of %d\n", player, green.Sprintf("#%d", *resp.Rank), resp.TotalEntries)
	if resp.Score != nil {
		fmt.Fprintf(out, "score       %s\n", strconv.FormatInt(*resp.Score, 10))
	}
	if resp.BestScore != nil {
		fmt.Fprintf(out, "best        %s\n", strconv.FormatInt(*resp.BestScore, 10))
	}
	if resp.Percentile != nil {
		fmt.Fprintf(out, "percentile  %.1f\n", *resp.Percentile)
	}
	if resp.Bracket != nil {
		fmt.Fprintf(out, "bracket     %s\n", bracketLabel(resp.Bracket))
	}
	if resp.GlobalRank != nil {
		fmt.Fprintf(out, "global rank #%d\n", *resp.GlobalRank)
	}
}
