package main

import (
	"context"
	"os"
	"os/signal"

	"ascnd/cmd/ascnd/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		cmd.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
