package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/config"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "divpanel:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, args); err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Close(shutdown)
	})
	return g.Wait()
}

// applyFlags lets the command line override the environment
func applyFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("divpanel", flag.ContinueOnError)
	port := fs.String("port", cfg.Server.Port, "listen port")
	store := fs.String("store", "", "sqlite file to persist panels in")
	provision := fs.String("provision", cfg.Provisioning.Dir, "directory of panel definitions to seed")
	dev := fs.Bool("dev", cfg.Logging.Development, "colored debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Server.Port = *port
	cfg.Provisioning.Dir = *provision
	cfg.Logging.Development = *dev
	if *store != "" {
		cfg.Store.Driver, cfg.Store.Path = "sqlite", *store
	}
	return cfg.Validate()
}
