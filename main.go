package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/sensor-ledger/cmd"
)

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=./gen/config.yaml ./gen/api.yaml

func main() {
	app := &cli.App{
		Name:   "sensor-ledger",
		Usage:  "reconciles sensor telemetry stored on the SensorStorage contract",
		Action: cmd.LedgerCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				EnvVars: []string{"CONFIG_FILE"},
				Value:   "",
				Usage:   "optional YAML config file, environment variables take precedence",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
			&cli.BoolFlag{
				Name:    "simulate",
				EnvVars: []string{"LEDGER_SIMULATE"},
				Value:   false,
				Usage:   "serve from an in-memory ledger fed with generated readings",
			},
			&cli.StringFlag{
				Name:    "http-addr",
				EnvVars: []string{"HTTP_ADDR"},
				Value:   "0.0.0.0:8000",
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
