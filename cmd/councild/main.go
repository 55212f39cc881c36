package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/council/config"
	"github.com/mohammad-safakhou/council/internal/council"
	"github.com/mohammad-safakhou/council/internal/runtime"
	srv "github.com/mohammad-safakhou/council/internal/server"
	"github.com/mohammad-safakhou/council/internal/telemetry"
)

func main() {
	var root = &cobra.Command{Use: "councild"}

	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			tele, err := runtime.SetupTelemetry(cmd.Context(), cfg.Telemetry, "councild")
			if err != nil {
				return err
			}
			defer func() { _ = tele.Shutdown(context.Background()) }()
			if serveAddr == "" {
				serveAddr = os.Getenv("COUNCIL_HTTP_ADDR")
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address")

	var noSummary bool
	var timeoutSeconds int
	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one council round and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			tracing, err := runtime.SetupTelemetry(cmd.Context(), cfg.Telemetry, "councild")
			if err != nil {
				return err
			}
			defer func() { _ = tracing.Shutdown(context.Background()) }()
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orch, err := council.NewOrchestrator(cfg, log.New(log.Writer(), "[ORCH] ", log.LstdFlags), tele)
			if err != nil {
				return err
			}
			q := council.Query{
				Text:           strings.Join(args, " "),
				WantSummary:    !noSummary,
				TimeoutSeconds: timeoutSeconds,
			}
			result, err := orch.Process(cmd.Context(), q)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
	ask.Flags().BoolVar(&noSummary, "no-summary", false, "skip the council summary call")
	ask.Flags().IntVar(&timeoutSeconds, "timeout", 60, "per-round timeout in seconds")

	root.AddCommand(serve, ask)
	_ = root.Execute()
}
