package main

import (
	"context"
	"fmt"
	"os"

	"scribe/shutdown"
)

var version = "dev"

func main() {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
