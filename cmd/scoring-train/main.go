// Command scoring-train generates the synthetic dataset, trains the
// attendance model and writes the artifact served by scoringd.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ticketguard/scoring/internal/infrastructure/config"
	"github.com/ticketguard/scoring/pkg/observability"
)

func main() {
	cfg := config.Load()
	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      "text",
		ServiceName: "scoring-train",
		Environment: cfg.Environment,
		Output:      os.Stderr,
	})
	slog.SetDefault(logger)

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
