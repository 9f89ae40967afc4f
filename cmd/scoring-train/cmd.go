package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/application/usecase"
	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/infrastructure/config"
	kafkainfra "github.com/ticketguard/scoring/internal/infrastructure/kafka"
	"github.com/ticketguard/scoring/internal/infrastructure/s3"
	"github.com/ticketguard/scoring/internal/ml/artifact"
	"github.com/ticketguard/scoring/internal/ml/synth"
	"github.com/ticketguard/scoring/internal/ml/trainer"
	"github.com/ticketguard/scoring/pkg/kafka"
)

// noCache satisfies usecase.CacheInvalidator; the CLI serves no model.
type noCache struct{}

func (noCache) Invalidate() {}

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var (
		size       int
		seed       int64
		configFile string
		modelPath  string
		version    string
	)

	cmd := &cobra.Command{
		Use:           "scoring-train",
		Short:         "train the attendance model on synthetic data and save the artifact",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < synth.MinSize {
				return fmt.Errorf("--size must be at least %d", synth.MinSize)
			}
			if configFile != "" {
				cfg.Training.ConfigFile = configFile
			}
			if modelPath != "" {
				cfg.Artifact.Path = modelPath
			}
			if version != "" {
				cfg.Artifact.Version = version
			}
			base, err := cfg.Trainer()
			if err != nil {
				return err
			}
			// Explicit flags win over the environment and the file.
			if cmd.Flags().Changed("size") || cfg.Training.ConfigFile == "" {
				base.Size = size
			}
			if cmd.Flags().Changed("seed") || cfg.Training.ConfigFile == "" {
				base.Seed = seed
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return train(ctx, cmd, cfg, base, logger)
		},
	}

	cmd.Flags().IntVar(&size, "size", cfg.Training.DefaultSize, "number of synthetic training records")
	cmd.Flags().Int64Var(&seed, "seed", cfg.Training.DefaultSeed, "seed for dataset generation")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML file with training hyperparameters")
	cmd.Flags().StringVar(&modelPath, "model-path", "", "artifact output path (defaults to MODEL_PATH)")
	cmd.Flags().StringVar(&version, "version", "", "model version recorded in the artifact (defaults to MODEL_VERSION)")

	cmd.AddCommand(newMigrateCmd(cfg))
	return cmd
}

func train(ctx context.Context, cmd *cobra.Command, cfg config.Config, base trainer.Config, logger *slog.Logger) error {
	storeOpts := []artifact.Option{artifact.WithLogger(logger)}
	if cfg.Artifact.MirrorEnabled() {
		mirror, err := s3.NewMirror(ctx, s3.Config{
			Bucket:   cfg.Artifact.S3Bucket,
			Key:      cfg.Artifact.S3Key,
			Region:   cfg.Artifact.S3Region,
			Endpoint: cfg.Artifact.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("artifact mirror: %w", err)
		}
		storeOpts = append(storeOpts, artifact.WithMirror(mirror))
	}
	store := artifact.NewStore(cfg.Artifact.Path, storeOpts...)

	var publisher port.EventPublisher = kafkainfra.NewLogPublisher(logger)
	if cfg.Kafka.Enabled() {
		kcfg := cfg.Kafka.Client()
		kcfg.ClientID = "scoring-train"
		producer, err := kafka.NewProducer(kcfg)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		publisher = kafkainfra.NewEventPublisher(producer, cfg.Kafka.Topic, "scoring-train", logger)
	}

	uc := usecase.NewTrainModel(trainer.New(logger), store, noCache{}, publisher, nil, logger, base)
	defer uc.Close()

	run, err := uc.Run(ctx, dto.TrainModelRequest{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model trained. Validation accuracy=%.4f\n", *run.ValidationAccuracy)
	fmt.Fprintf(out, "Saved at %s\n", run.ModelPath)
	fmt.Fprintf(out, "Training records generated: %d\n", run.Records)
	return nil
}
