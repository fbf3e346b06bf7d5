package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/danpilch/kpstk/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kp: %v\n", err)
		os.Exit(1)
	}
}
