package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tandembot/tandem/internal/cmd/tandem"
)

func main() {
	log.SetPrefix("[TANDEM] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tandem.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("run: %v", err)
	}
}
