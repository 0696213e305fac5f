package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/talent-ranker/internal/ai"
	"github.com/spigell/talent-ranker/internal/ai/gemini"
	"github.com/spigell/talent-ranker/internal/ai/ngram"
	"github.com/spigell/talent-ranker/internal/ai/openai"
	"github.com/spigell/talent-ranker/internal/ai/rediscache"
	"github.com/spigell/talent-ranker/internal/filtering"
	"github.com/spigell/talent-ranker/internal/intake"
	"github.com/spigell/talent-ranker/internal/logger"
	"github.com/spigell/talent-ranker/internal/metrics"
	"github.com/spigell/talent-ranker/internal/ranking"
	"github.com/spigell/talent-ranker/internal/secrets"
)

const (
	PromptShowRanking         = "Show ranking"
	PromptReportByLocation    = "Report by location"
	PromptShortlist           = "Shortlist"
	PromptResultsToFile       = "Dump results to file"
	PromptAppendToExcludeFile = "Append shortlist to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"

	providerNgram  = "ngram"
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{
		PromptShowRanking,
		PromptReportByLocation,
		PromptShortlist,
		PromptResultsToFile,
		PromptAppendToExcludeFile,
		PromptExit,
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidates against a job",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().BoolP("auto-approve", "y", false, "print the ranking and exit without asking")
	rankCmd.Flags().StringP("job", "J", "", "file with the job requisition (json, yaml or toml)")
	rankCmd.Flags().StringP("candidates", "c", "", "file with the candidates list under the 'candidates' key")
	rankCmd.Flags().StringP("exclude-file", "e", "", "special file with candidates to exclude. Default is unset.")
	rankCmd.Flags().String("metrics-file", "", "write prometheus metrics in textfile format to this path")
	rankCmd.Flags().Int("workers", 0, "number of scoring workers (default is the number of CPUs)")
	rankCmd.Flags().String("skill-strategy", "", "semantic skill pairing: greedy or optimal")
	rankCmd.Flags().Int("top", 0, "keep only the best N candidates")

	viper.BindPFlag("job-file", rankCmd.Flags().Lookup("job"))
	viper.BindPFlag("candidates-file", rankCmd.Flags().Lookup("candidates"))
	viper.BindPFlag("exclude-file", rankCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("metrics-file", rankCmd.Flags().Lookup("metrics-file"))
	viper.BindPFlag("ranking.workers", rankCmd.Flags().Lookup("workers"))
	viper.BindPFlag("ranking.skill-strategy", rankCmd.Flags().Lookup("skill-strategy"))
	viper.BindPFlag("filters.top", rankCmd.Flags().Lookup("top"))
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the talent-ranker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.JobFile == "" || config.CandidatesFile == "" {
		logger.Fatal("job-file and candidates-file are required",
			zap.String("hint", "set them in the config file or pass --job and --candidates"),
		)
	}

	job, err := intake.LoadJob(config.JobFile)
	if err != nil {
		logger.Fatal("loading the job", zap.Error(err), zap.String("path", config.JobFile))
	}

	candidates, err := intake.LoadCandidates(config.CandidatesFile)
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err), zap.String("path", config.CandidatesFile))
	}

	for _, issue := range candidates.Issues {
		logger.Warn("candidate record partly decoded",
			zap.Int("index", issue.Index),
			zap.String("candidate", issue.CandidateID),
			zap.Error(issue.Err),
		)
	}

	logger.Info("loaded candidates",
		zap.String("job", job.Title),
		zap.Int("count", candidates.Len()),
		zap.Int("issues", len(candidates.Issues)),
	)

	if candidates.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates found"))
		return
	}

	m := metrics.New()

	ranker, err := newRanker(ctx, config, job, candidates, logger, m)
	if err != nil {
		logger.Fatal("preparing the ranker", zap.Error(err))
	}

	matches, err := ranker.Rank(ctx, job, candidates.Items)
	if err != nil {
		logger.Fatal("ranking failed", zap.Error(err))
	}

	results := intake.NewResults(job, candidates.Items, matches)

	results, err = filtering.Run(ctx, filtersConfig(config), filtering.Deps{Logger: logger}, filtering.Default(), results)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if config.MetricsFile != "" {
		if err := m.WriteToFile(config.MetricsFile); err != nil {
			logger.Warn("writing metrics", zap.Error(err), zap.String("path", config.MetricsFile))
		}
	}

	if results.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates left after filters"))
		return
	}

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	for {
		action := PromptShowRanking
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of candidates", zap.Int("count", results.Len()))

		if err := handleAction(action, logger, config, results); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if autoApprove {
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, results *intake.Results) error {
	switch action {
	case PromptShowRanking:
		showRanking(logger, results)
		return nil
	case PromptReportByLocation:
		pretty, _ := json.MarshalIndent(results.ReportByLocation(), "", "  ")
		logger.Info(string(pretty), zap.Int("candidates count", results.Len()))
		return nil
	case PromptShortlist:
		return shortlist(logger, config, results)
	case PromptResultsToFile:
		filename, err := results.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, config.ExcludeFile, results)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showRanking(logger *zap.Logger, results *intake.Results) {
	for _, item := range results.Items {
		fields := []zap.Field{
			zap.Int("rank", item.Rank),
			zap.String("candidate", item.CandidateRef),
			zap.String("name", item.Name),
			zap.Float64("overall", item.OverallScore),
			zap.Float64("skills", item.SkillScore),
			zap.Float64("experience", item.ExperienceScore),
			zap.Float64("education", item.EducationScore),
			zap.Float64("text", item.TextSimilarityScore),
			zap.Float64("location", item.LocationScore),
			zap.Strings("missing_skills", item.MissingSkills),
		}
		if len(item.Degraded) > 0 {
			fields = append(fields, zap.Strings("degraded", item.Degraded))
		}
		logger.Info("ranked candidate", fields...)
	}
}

// shortlist lets the user inspect candidates one by one and drop the ones
// that should not be shortlisted.
func shortlist(logger *zap.Logger, config *Config, results *intake.Results) error {
	for {
		items := make([]string, 0, results.Len()+2)
		for _, item := range results.Items {
			items = append(items, fmt.Sprintf("%s #%d %s / %.3f", item.CandidateRef, item.Rank, item.Name, item.OverallScore))
		}

		if config.ExcludeFile != "" && results.Len() != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		candidatePrompt := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := candidatePrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return nil
		case PromptAppendToExcludeFile:
			if err := appendToExcludeFile(logger, config.ExcludeFile, results); err != nil {
				return err
			}
		default:
			item := selectedResult(results, idx)
			if item == nil {
				return fmt.Errorf("there is no candidate at position %d", idx)
			}
			ref := item.CandidateRef

			pretty, _ := json.MarshalIndent(item, "", "  ")
			logger.Info(string(pretty))

			confirm := promptui.Select{
				Label: "Keep this candidate on the shortlist?",
				Items: []string{"Yes", "No"},
			}
			_, answer, err := confirm.Run()
			if err != nil {
				return err
			}
			if answer == "No" {
				results.Exclude([]string{ref})
				logger.Info("removed from shortlist", zap.String("candidate", ref))
			}
		}
	}
}

// selectedResult maps a shortlist prompt index back to its result. Candidate
// entries come first in the prompt, in results order.
func selectedResult(results *intake.Results, idx int) *intake.Result {
	if idx < 0 || idx >= results.Len() {
		return nil
	}
	return results.Items[idx]
}

func appendToExcludeFile(logger *zap.Logger, path string, results *intake.Results) error {
	if path == "" {
		return errors.New("exclude-file is not configured")
	}

	excluded, err := intake.ExcludedFromFile(path)
	if err != nil {
		return err
	}

	excluded.Append(results.ToExcluded())

	if err = excluded.ToFile(path); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", results.Len()))

	results.Exclude(excluded.IDs())
	return nil
}

func filtersConfig(config *Config) *filtering.Config {
	cfg := &filtering.Config{ExcludeFile: config.ExcludeFile}
	if config.Filters != nil {
		cfg.MinimumScore = config.Filters.MinimumScore
		cfg.Top = config.Filters.Top
		cfg.MustHaveSkills = config.Filters.MustHaveSkills
	}
	return cfg
}

func newRanker(ctx context.Context, config *Config, job *ranking.Job, candidates *intake.Candidates, logger *zap.Logger, m *metrics.Metrics) (*ranking.Ranker, error) {
	rc := config.Ranking
	if rc == nil {
		rc = &RankingConfig{}
	}

	strategy, err := ranking.ParseSkillStrategy(rc.SkillStrategy)
	if err != nil {
		return nil, err
	}

	opts := []ranking.Option{
		ranking.WithWeights(config.Weights),
		ranking.WithSkillStrategy(strategy),
		ranking.WithProviderTimeout(rc.ProviderTimeout),
		ranking.WithLogger(logger),
		ranking.WithMetrics(m),
	}
	if rc.Workers > 0 {
		opts = append(opts, ranking.WithWorkers(rc.Workers))
	}
	if rc.SemanticThreshold != 0 {
		opts = append(opts, ranking.WithSemanticThreshold(rc.SemanticThreshold))
	}

	if config.AI != nil && config.AI.Enabled {
		if config.AI.MaxLogLength > 0 {
			opts = append(opts, ranking.WithMaxLogLength(config.AI.MaxLogLength))
		}

		similarity, err := newSimilarity(ctx, config.AI, logger, m)
		if err != nil {
			return nil, fmt.Errorf("building similarity provider: %w", err)
		}

		// Embedding every skill up front turns many small calls into one batch.
		if err := similarity.Warm(ctx, skillPhrases(job, candidates)); err != nil {
			logger.Warn("warming embeddings failed, falling back to lookups per pair", zap.Error(err))
		}

		opts = append(opts, ranking.WithSimilarity(similarity))
	}

	return ranking.New(opts...)
}

func newSimilarity(ctx context.Context, cfg *AIConfig, log *zap.Logger, m *metrics.Metrics) (*ai.EmbeddingSimilarity, error) {
	embedder, err := newEmbedder(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Cache != nil && cfg.Cache.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			log.Warn("embedding cache disabled", zap.Error(err))
		} else {
			cached, err := rediscache.New(embedder, client, rediscache.Config{
				TTL:    cfg.Cache.TTL,
				Prefix: cfg.Cache.Prefix,
			}, log, m)
			if err != nil {
				return nil, err
			}
			embedder = cached
		}
	}

	providerLogger := logger.WithProvider(log, strings.ToLower(cfg.Provider), embedder.Model())
	providerLogger.Info("semantic skill matching enabled")

	return ai.NewEmbeddingSimilarity(embedder, providerLogger, m)
}

func newEmbedder(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", providerNgram:
		return ngram.New(0), nil
	case providerGemini:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  gc.APIKeyFile,
			Env:   "GEMINI_API_KEY",
			Value: gc.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		return gemini.NewEmbedder(ctx, apiKey, gc.Model, gc.MaxRetries, logger.WithProvider(log, providerGemini, gc.Model))
	case providerOpenAI:
		oc := cfg.OpenAI
		if oc == nil {
			return nil, errors.New("ai.openai section is required for the openai provider")
		}

		return openai.NewEmbedder(oc.Host, oc.Model, oc.Token, logger.WithProvider(log, providerOpenAI, oc.Model))
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// skillPhrases lists every distinct skill phrase the matcher may look up.
func skillPhrases(job *ranking.Job, candidates *intake.Candidates) []string {
	seen := make(map[string]struct{})
	var phrases []string
	add := func(skills []string) {
		for _, skill := range skills {
			normalized := ranking.NormalizeSkill(skill)
			if normalized == "" {
				continue
			}
			if _, ok := seen[normalized]; ok {
				continue
			}
			seen[normalized] = struct{}{}
			phrases = append(phrases, normalized)
		}
	}

	add(job.RequiredSkills)
	for _, c := range candidates.Items {
		add(c.Skills)
	}
	return phrases
}

// redacted returns a copy of config safe to log.
func redacted(config *Config) *Config {
	out := *config
	if config.AI != nil {
		aiCfg := *config.AI
		if aiCfg.Gemini != nil && aiCfg.Gemini.APIKey != "" {
			gc := *aiCfg.Gemini
			gc.APIKey = "***"
			aiCfg.Gemini = &gc
		}
		if aiCfg.OpenAI != nil && aiCfg.OpenAI.Token != "" {
			oc := *aiCfg.OpenAI
			oc.Token = "***"
			aiCfg.OpenAI = &oc
		}
		out.AI = &aiCfg
	}
	return &out
}
