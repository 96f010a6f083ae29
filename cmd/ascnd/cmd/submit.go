package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ascnd/core"
)

func newSubmitCmd(opts *options) *cobra.Command {
	var (
		metadata string
		key      string
		noKey    bool
	)

	cmd := &cobra.Command{
		Use:   "submit <leaderboard> <player> <score>",
		Short: "Record a score",
		Long: `Record a score for a player.

An idempotency key is generated unless --key or --no-key is given,
so a retried command never counts twice.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("score must be an integer: %w", err)
			}
			req := &core.SubmitScoreRequest{LeaderboardID: args[0], PlayerID: args[1], Score: score}
			if metadata != "" {
				if !json.Valid([]byte(metadata)) {
					return fmt.Errorf("metadata must be valid JSON")
				}
				req.Metadata = []byte(metadata)
			}
			switch {
			case key != "":
				req.IdempotencyKey = core.Ptr(key)
			case !noKey:
				req.IdempotencyKey = core.Ptr(core.NewIdempotencyKey())
			}

			client, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.SubmitScore(cmd.Context(), req)
			if err != nil {
				return err
			}
			printSubmit(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON metadata stored with the score")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key")
	cmd.Flags().BoolVar(&noKey, "no-key", false, "send no idempotency key")
	return cmd
}

func printSubmit(cmd *cobra.Command, resp *core.SubmitScoreResponse) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintf(out, "score id  %s\n", resp.ScoreID)
	if resp.Rank > 0 {
		fmt.Fprintf(out, "rank      %s\n", green.Sprintf("#%d", resp.Rank))
	} else {
		fmt.Fprintf(out, "rank      %s\n", color.HiBlackString("unranked"))
	}
	if resp.IsNewBest {
		fmt.Fprintln(out, green.Sprint("new personal best"))
	}
	if resp.WasDeduplicated {
		fmt.Fprintln(out, yellow.Sprint("duplicate submission, original result returned"))
	}
	if ac := resp.Anticheat; ac != nil && !ac.Passed {
		fmt.Fprintf(out, "anticheat %s\n", yellow.Sprint(ac.Action))
		for _, v := range ac.Violations {
			fmt.Fprintf(out, "  %s: %s\n", v.FlagType, v.Reason)
		}
	}
}
