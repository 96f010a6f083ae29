package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ascnd/config"
	sdk "ascnd/sdk/go"
	"ascnd/transport"
)

type options struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	grpcWeb  bool
	noColor  bool
}

// NewRootCmd builds the ascnd command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ascnd",
		Short: "Submit scores and read leaderboards",
		Long: `ascnd talks to an Ascnd leaderboard service.

Connection settings come from ASCND_ENDPOINT, ASCND_API_KEY,
ASCND_TIMEOUT and ASCND_PROTOCOL; flags override them.

Commands:
  submit   - record a score
  top      - list a page of a leaderboard
  rank     - show one player's standing`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.endpoint, "endpoint", "", "service base URL (env ASCND_ENDPOINT)")
	flags.StringVar(&opts.apiKey, "api-key", "", "API key (env ASCND_API_KEY)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-call timeout (env ASCND_TIMEOUT)")
	flags.BoolVar(&opts.grpcWeb, "grpc-web", false, "use gRPC-Web framing")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newSubmitCmd(opts), newTopCmd(opts), newRankCmd(opts))
	return root
}

// newClient merges the environment with flags set on cmd.
func (o *options) newClient(cmd *cobra.Command) (*sdk.Client, error) {
	cfg, err := config.ClientFromEnv()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = o.endpoint
	}
	if flags.Changed("api-key") {
		cfg.APIKey = o.apiKey
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if o.grpcWeb {
		cfg.Protocol = transport.ProtocolGRPCWeb
	}
	return sdk.NewClient(cfg)
}

// PrintError writes err to w, highlighting service error codes.
func PrintError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var aerr *sdk.AscndError
	if errors.As(err, &aerr) {
		fmt.Fprintf(w, "%s %s\n", red.Sprint(aerr.Code), aerr.Message)
		for k, v := range aerr.Details {
			fmt.Fprintf(w, "  %s: %v\n", color.HiBlackString(k), v)
		}
		return
	}
	fmt.Fprintf(w, "%s %v\n", red.Sprint("error"), err)
}
