package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dkovalenko/cvrank/internal/embedding"
	"github.com/dkovalenko/cvrank/internal/embedding/gemini"
	"github.com/dkovalenko/cvrank/internal/embedding/openai"
	"github.com/dkovalenko/cvrank/internal/logger"
	"github.com/dkovalenko/cvrank/internal/match"
	"github.com/dkovalenko/cvrank/internal/model"
	"github.com/dkovalenko/cvrank/internal/roster"
	"github.com/dkovalenko/cvrank/internal/secrets"
	"github.com/dkovalenko/cvrank/internal/vectorstore"
	"github.com/dkovalenko/cvrank/internal/vectorstore/memory"
	"github.com/dkovalenko/cvrank/internal/vectorstore/qdrant"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptTopMatches = "Show top matches for a candidate"
	PromptStats      = "Show embedding statistics"
	PromptDumpToFile = "Dump evaluations to file"
	PromptExit       = "Exit"
	evaluationsFile  = "evaluations.json"
	topMatchesPerCat = 3
)

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptTopMatches, PromptStats, PromptDumpToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest candidates and rank them against the configured job",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "print the ranking and exit without the interactive prompt")
	runCmd.Flags().BoolP("reset-store", "r", false, "clear all stored embeddings before ingesting")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting cvrank", zap.String("version", version))

	if config == nil {
		logger.Fatal("config is required")
	}
	if config.JobFile == "" {
		logger.Fatal("a job file is required under job-file")
	}
	if config.CandidatesFile == "" {
		logger.Fatal("a candidates file is required under candidates-file")
	}

	job, err := model.LoadJob(config.JobFile)
	if err != nil {
		logger.Fatal("loading job", zap.Error(err))
	}

	candidates, err := model.LoadCandidates(config.CandidatesFile)
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err))
	}

	logger.Info("loaded inputs",
		zap.String("job", job.Title),
		zap.Int("candidates", len(candidates)),
	)

	embedder, err := buildEmbedder(ctx, config)
	if err != nil {
		logger.Fatal("building embedder", zap.Error(err))
	}

	store, err := buildStore(config)
	if err != nil {
		logger.Fatal("building vector store", zap.Error(err))
	}

	manager := embedding.NewManager(embedder, store, logger)

	if cmd.Flag("reset-store").Value.String() == "true" {
		if err := manager.Clear(ctx); err != nil {
			logger.Fatal("clearing stored embeddings", zap.Error(err))
		}
		logger.Info("stored embeddings cleared")
	}

	processor := roster.NewProcessor(manager, logger)
	if err := processor.AddCandidates(ctx, candidates); err != nil {
		logger.Fatal("ingesting candidates", zap.Error(err))
	}

	matcherCfg := match.Config{}
	if config.Matching != nil {
		matcherCfg.TopK = config.Matching.TopK
		matcherCfg.QueryTimeout = config.Matching.QueryTimeout
	}
	matcher := match.NewMatcher(manager, store, logger, matcherCfg)
	evaluator := match.NewEvaluator(matcher, logger)

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	logger.Info("evaluating candidates", zap.String("job", job.Title))

	evaluations, err := evaluator.EvaluateMany(ctx, job, names)
	if err != nil {
		logger.Fatal("evaluating candidates", zap.Error(err))
	}

	printRanking(job, evaluations)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("prompt failed", zap.Error(err))
		}

		switch action {
		case PromptTopMatches:
			if err := showTopMatches(evaluations); err != nil {
				logger.Warn("showing top matches", zap.Error(err))
			}
		case PromptStats:
			stats, err := manager.Stats(ctx)
			if err != nil {
				logger.Warn("getting embedding statistics", zap.Error(err))
				continue
			}
			fmt.Printf("cache hits: %d, api calls: %d, stored this run: %d, total points: %d (%d job, %d candidate), hit rate: %.1f%%\n",
				stats.CacheHits, stats.APICalls, stats.StoredPoints, stats.TotalPoints, stats.JobPoints, stats.CandidatePoints, stats.HitRate)
		case PromptDumpToFile:
			if err := dumpEvaluations(evaluations); err != nil {
				logger.Warn("dumping evaluations", zap.Error(err))
				continue
			}
			logger.Info("evaluations dumped", zap.String("file", evaluationsFile))
		case PromptExit:
			return
		}
	}
}

func buildEmbedder(ctx context.Context, config *Config) (embedding.Embedder, error) {
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedder configuration is required")
	}

	switch config.Embedder.Provider {
	case "gemini":
		cfg := config.Embedder.Gemini
		if cfg == nil {
			cfg = &GeminiConfig{}
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			Env:   "CVRANK_GEMINI_API_KEY",
			File:  cfg.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, key, cfg.Model)
	case "openai":
		cfg := config.Embedder.OpenAI
		if cfg == nil {
			cfg = &OpenAIConfig{}
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.APIKey,
			Env:   "CVRANK_OPENAI_API_KEY",
			File:  cfg.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     key,
			Model:      cfg.Model,
			APIVersion: cfg.APIVersion,
		})
	}
	return nil, fmt.Errorf("unknown embedder provider %q", config.Embedder.Provider)
}

func buildStore(config *Config) (vectorstore.Store, error) {
	if config.Store == nil || config.Store.Provider == "memory" {
		return memory.New(), nil
	}

	switch config.Store.Provider {
	case "qdrant":
		cfg := config.Store.Qdrant
		if cfg == nil {
			return nil, fmt.Errorf("qdrant configuration is required")
		}
		collection := cfg.Collection
		if collection == "" {
			collection = app
		}
		return qdrant.New(qdrant.Config{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: collection,
		})
	}
	return nil, fmt.Errorf("unknown store provider %q", config.Store.Provider)
}

func printRanking(job *model.Job, evaluations []*model.Evaluation) {
	fmt.Printf("\nRanking for %q:\n\n", job.Title)
	for i, e := range evaluations {
		fmt.Printf("%2d. %-25s overall %.4f (%s)\n", i+1, e.CandidateName, e.OverallScore, model.QualityFromScore(e.OverallScore))
		for _, result := range e.Categories {
			fmt.Printf("      %-15s %.4f\n", result.Category, result.OverallScore)
		}
	}
	fmt.Println()
}

func showTopMatches(evaluations []*model.Evaluation) error {
	names := make([]string, len(evaluations))
	for i, e := range evaluations {
		names[i] = e.CandidateName
	}

	candidatePrompt := promptui.Select{Label: "Candidate", Items: names}
	i, _, err := candidatePrompt.Run()
	if err != nil {
		return err
	}

	evaluation := evaluations[i]
	for _, result := range evaluation.Categories {
		fmt.Printf("\n%s (score %.4f):\n", result.Category, result.OverallScore)
		for _, top := range match.TopMatches(result, topMatchesPerCat) {
			fmt.Printf("  %-35s -> %-35s %.4f (%s)\n", top.Requirement, top.MatchedItem, top.Score, top.Quality)
		}
	}
	fmt.Println()
	return nil
}

func dumpEvaluations(evaluations []*model.Evaluation) error {
	data, err := json.MarshalIndent(evaluations, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding evaluations: %w", err)
	}
	if err := os.WriteFile(evaluationsFile, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", evaluationsFile, err)
	}
	return nil
}
