package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrelgames/puzzlehall/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := config.New(func(cmd *cobra.Command, cfg *config.Config) error {
		return Serve(ctx, cfg)
	})

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
