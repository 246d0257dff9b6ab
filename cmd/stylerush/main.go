// Package main provides the stylerush CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stylerush/stylerush/catalog"
	"github.com/stylerush/stylerush/config"
	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/llm"
	"github.com/stylerush/stylerush/model"
	"github.com/stylerush/stylerush/player"
	"github.com/stylerush/stylerush/queue"
	"github.com/stylerush/stylerush/storage"
	"github.com/stylerush/stylerush/tryon"
)

var providerFlag string

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "stylerush",
		Short: "Autonomous AI stylist and try-on job queue",
		Long: `Styling-game tooling built around two loops:

- run: one autonomous AI player turn (plan, gather, try-on, pick),
  streaming ndjson events as it goes
- worker: the background try-on job queue processing player requests`,
	}

	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "openai", "LLM provider (openai, anthropic, deepseek, gemini)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(enqueueCmd())
	rootCmd.AddCommand(jobsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// noCloseWriter shields os.Stdout from the emitter's close.
type noCloseWriter struct {
	io.Writer
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func buildLLMClient(settings config.Settings) (*llm.Client, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
	if err != nil {
		return nil, err
	}
	return llm.NewClient(provider), nil
}

func buildRenderer(settings config.Settings) tryon.Renderer {
	return tryon.NewClient(tryon.ClientConfig{
		BaseURL:      settings.TryOn.BaseURL,
		APIKey:       settings.TryOn.APIKey,
		PollInterval: settings.TryOn.PollInterval,
		PollTimeout:  settings.TryOn.PollTimeout,
	})
}

func runCmd() *cobra.Command {
	var theme, avatar, outputPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one autonomous AI player turn",
		Long: `Execute one autonomous AI player turn for a theme.

The run streams ndjson events (one per line) to stdout or the given
output file: planning thoughts, gather and try-on tool calls, and the
final pick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New(providerFlag)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			llmClient, err := buildLLMClient(settings)
			if err != nil {
				return err
			}
			inventory, err := catalog.OpenInventoryDir(settings.Player.InventoryDir)
			if err != nil {
				return fmt.Errorf("opening inventory: %w", err)
			}

			var out io.Writer = noCloseWriter{os.Stdout}
			if outputPath != "" {
				file, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				out = file
			}

			store, err := storage.OpenSqlite(settings.Queue.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			p := player.New(player.Config{
				Theme:              theme,
				AvatarURL:          avatar,
				Duration:           settings.Player.RunDuration,
				LLM:                llmClient,
				Inventory:          inventory,
				Remote:             catalog.NewRemoteSearcher(settings.Catalog.RemoteBaseURL, settings.Catalog.RemoteAPIKey),
				Renderer:           buildRenderer(settings),
				Semaphore:          async.NewSemaphore(settings.TryOn.Concurrency),
				Manifests:          store,
				Output:             out,
				Logger:             logger,
				RemoteSearchBudget: settings.Player.RemoteSearchBudget,
				RemotePickBudget:   settings.Player.RemotePickBudget,
				RenderAttempts:     settings.TryOn.MaxAttempts,
			})
			return p.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", "Styling theme for the round")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar image URL to render try-ons on")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the event stream to a file instead of stdout")
	cmd.MarkFlagRequired("theme")
	cmd.MarkFlagRequired("avatar")

	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the try-on job queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New(providerFlag)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := storage.OpenSqlite(settings.Queue.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			sem := async.NewSemaphore(settings.TryOn.Concurrency)
			q := queue.New(store, buildRenderer(settings), sem, queue.Config{
				MaxConcurrency: settings.Queue.Concurrency,
				IdleInterval:   settings.Queue.IdleInterval,
				RestartDelay:   settings.Queue.RestartDelay,
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			q.Start()
			logger.Info("queue worker started",
				zap.Int("concurrency", settings.Queue.Concurrency),
				zap.String("db", settings.Queue.DatabasePath))
			<-ctx.Done()
			q.Stop()
			logger.Info("queue worker stopped")
			return nil
		},
	}
}

func enqueueCmd() *cobra.Command {
	var baseImage, baseImageID, itemID, itemImage string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a try-on job for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New(providerFlag)
			if err != nil {
				return err
			}
			store, err := storage.OpenSqlite(settings.Queue.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			// The worker owns processing; this process only records the
			// job, so the loop is stopped right after the upsert starts it.
			sem := async.NewSemaphore(settings.TryOn.Concurrency)
			q := queue.New(store, buildRenderer(settings), sem, queue.Config{
				MaxConcurrency: settings.Queue.Concurrency,
			}, zap.NewNop())

			job, err := q.Enqueue(cmd.Context(), queue.EnqueueRequest{
				BaseImageID:  baseImageID,
				BaseImageURL: baseImage,
				ItemID:       itemID,
				ItemImageURL: itemImage,
			})
			if err != nil {
				return err
			}
			q.Stop()
			return json.NewEncoder(os.Stdout).Encode(job)
		},
	}

	cmd.Flags().StringVar(&baseImage, "base-image", "", "Base (avatar) image URL")
	cmd.Flags().StringVar(&baseImageID, "base-image-id", "", "Stored base image id, if any")
	cmd.Flags().StringVar(&itemID, "item-id", "", "Garment item id")
	cmd.Flags().StringVar(&itemImage, "item-image", "", "Garment image URL")
	cmd.MarkFlagRequired("base-image")
	cmd.MarkFlagRequired("item-id")
	cmd.MarkFlagRequired("item-image")

	return cmd
}

func jobsCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List try-on jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New(providerFlag)
			if err != nil {
				return err
			}
			store, err := storage.OpenSqlite(settings.Queue.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.ListByStatus(cmd.Context(), model.JobStatus(status), limit)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			for _, job := range jobs {
				if err := encoder.Encode(job); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(model.JobQueued), "Job status to list (queued, running, succeeded, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")

	return cmd
}
