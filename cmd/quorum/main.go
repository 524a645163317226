package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/quorum/pkg/cache"
	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/classify"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/council"
	"github.com/zen-systems/quorum/pkg/engine"
	"github.com/zen-systems/quorum/pkg/provider"
	"github.com/zen-systems/quorum/pkg/race"
	"github.com/zen-systems/quorum/pkg/server"
	"github.com/zen-systems/quorum/pkg/trace"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quorum",
		Short: "Multi-model consensus engine",
		Long: `Quorum races a council of LLMs against the same prompt, clusters the
	answers into agreement groups, and returns the majority answer with a
	confidence score and a cost breakdown.`,
	}

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(tiersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var budgetFlag, reliabilityFlag, tierFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a council of models and report their consensus",
		Long: `Classifies the prompt, selects a diversified council within the budget
	tier, races the models concurrently, and prints the winning answer with
	its confidence and per-model votes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}

			tier := classify.Tier(tierFlag)
			if tier == "" {
				decision := classify.Prompt(prompt)
				tier = decision.Tier
				fmt.Fprintf(os.Stderr, "Classified as %s (score %.2f)\n", tier, decision.Score)
			}

			result, err := app.engine.RunConsensus(cmd.Context(), engine.Request{
				Prompt:      prompt,
				BudgetTier:  council.BudgetTier(budgetFlag),
				Reliability: council.Reliability(reliabilityFlag),
			}, tier)
			if err != nil {
				return err
			}

			if jsonFlag {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Println(result.Answer)
			fmt.Fprintf(os.Stderr, "\nconfidence %.2f · %d votes · $%.5f",
				result.Confidence, len(result.Votes), result.Cost.Total)
			if result.Synthesized {
				fmt.Fprintf(os.Stderr, " · synthesized by %s", result.ModelUsed)
			}
			if result.Cached {
				fmt.Fprint(os.Stderr, " · cached")
			}
			fmt.Fprintln(os.Stderr)
			for _, v := range result.Votes {
				mark := "✗"
				if v.Agrees {
					mark = "✓"
				}
				fmt.Fprintf(os.Stderr, "  %s %s\n", mark, v.Model)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&budgetFlag, "budget", "low", "budget tier: free, low, medium, high")
	cmd.Flags().StringVar(&reliabilityFlag, "reliability", "standard", "reliability: standard, high")
	cmd.Flags().StringVar(&tierFlag, "tier", "", "override complexity tier: simple, medium, complex")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full result as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the consensus HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}

			addr := cfg.ListenAddr
			if addrFlag != "" {
				addr = addrFlag
			}

			logger := slog.Default()
			srv := server.New(app.engine, app.registry, cfg.ServerAPIKey, logger)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				errCh <- httpServer.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to council selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}

			live, err := app.registry.Models(cmd.Context())
			if err != nil {
				fmt.Fprintf(os.Stderr, "catalog unavailable, showing fallback set: %v\n", err)
			}
			models := catalog.Merge(live, catalog.Fallback())
			catalog.SortByAvgPrice(models)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tBUCKET\tIN $/M\tOUT $/M\tCONTEXT")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%d\n",
					m.ID, catalog.BucketOf(m), m.InputPerMTok, m.OutputPerMTok, m.ContextLength)
			}
			return w.Flush()
		},
	}
}

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Show budget tiers, cost caps, and council shapes",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUDGET\tCAP/REQUEST\tMODELS ALLOWED")
			fmt.Fprintf(w, "free\t$%.2f\tfree models only\n", council.CapFor(council.BudgetFree))
			fmt.Fprintf(w, "low\t$%.2f\tavg price ≤ $1/M\n", council.CapFor(council.BudgetLow))
			fmt.Fprintf(w, "medium\t$%.2f\tavg price ≤ $10/M\n", council.CapFor(council.BudgetMedium))
			fmt.Fprintf(w, "high\t$%.2f\tno ceiling\n", council.CapFor(council.BudgetHigh))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "COMPLEXITY\tCOUNCIL\tTARGET VOTES")
			fmt.Fprintf(w, "simple\t3 from the sub-$0.20/M band\t%d\n", council.TargetVotes(classify.Simple, 5))
			fmt.Fprintf(w, "medium\t4 cheap/free + 1 smart\t%d\n", council.TargetVotes(classify.Medium, 5))
			fmt.Fprintf(w, "complex\t2 cheap + 3 smart (or 3 smart + 2 premium)\t%d\n", council.TargetVotes(classify.Complex, 5))
			return w.Flush()
		},
	}
}

// app bundles the wired engine and its registry for the commands.
type app struct {
	engine   *engine.Engine
	registry *catalog.Registry
}

// buildApp wires the full stack from configuration: cache store, catalog
// registry, provider clients, trace writer, and the engine.
func buildApp(cfg *config.Config) (*app, error) {
	store, err := cache.NewRistretto(cfg.CacheMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	var catalogOpts []catalog.ClientOption
	if cfg.CatalogURL != "" {
		catalogOpts = append(catalogOpts, catalog.WithBaseURL(cfg.CatalogURL))
	}
	registry := catalog.NewRegistry(catalog.NewClient(cfg.OpenRouterAPIKey, catalogOpts...), store, catalog.DefaultTTL)

	providers, embedder, embeddingModel, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	var traceWriter *trace.Writer
	if cfg.TraceDir != "" {
		traceWriter, err = trace.NewWriter(cfg.TraceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace writer: %w", err)
		}
	}

	eng := engine.New(engine.Config{
		Registry:       registry,
		Completer:      providers,
		Embedder:       embedder,
		EmbeddingModel: embeddingModel,
		SynthesisModel: cfg.SynthesisModel,
		Store:          store,
		Timings: race.Timings{
			MinWait:    cfg.MinWait,
			SecondWave: cfg.SecondWave,
			Deadline:   cfg.Deadline,
		},
		TraceWriter: traceWriter,
	})
	return &app{engine: eng, registry: registry}, nil
}

// buildProviders assembles the routing registry: native SDK clients for
// providers with configured keys, the gateway for everything else, and an
// embedder for semantic clustering. The returned embedding model is bare
// when the native OpenAI client embeds, the full catalog ID otherwise.
func buildProviders(cfg *config.Config) (*provider.Registry, provider.Embedder, string, error) {
	var gateway *provider.Gateway
	if cfg.OpenRouterAPIKey != "" {
		g, err := provider.NewGateway(cfg.OpenRouterAPIKey)
		if err != nil {
			return nil, nil, "", err
		}
		gateway = g
	}

	var registry *provider.Registry
	if gateway != nil {
		registry = provider.NewRegistry(gateway)
	} else {
		registry = provider.NewRegistry(nil)
	}

	var embedder provider.Embedder
	embeddingModel := cfg.EmbeddingModel
	if gateway != nil {
		embedder = gateway
	}

	if cfg.AnthropicAPIKey != "" {
		client, err := provider.NewAnthropic(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, nil, "", err
		}
		registry.RegisterNative("anthropic", client)
	}
	if cfg.OpenAIAPIKey != "" {
		client, err := provider.NewOpenAI(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, nil, "", err
		}
		registry.RegisterNative("openai", client)
		embedder = client
		embeddingModel = strings.TrimPrefix(cfg.EmbeddingModel, "openai/")
	}
	if cfg.GoogleAPIKey != "" {
		client, err := provider.NewGoogle(cfg.GoogleAPIKey)
		if err != nil {
			return nil, nil, "", err
		}
		registry.RegisterNative("google", client)
	}

	if gateway == nil && cfg.AnthropicAPIKey == "" && cfg.OpenAIAPIKey == "" && cfg.GoogleAPIKey == "" {
		return nil, nil, "", errors.New("no provider API keys configured; set OPENROUTER_API_KEY or a native provider key")
	}
	return registry, embedder, embeddingModel, nil
}
