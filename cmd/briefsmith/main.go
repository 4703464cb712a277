package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"briefsmith/internal/agent"
	"briefsmith/internal/config"
	"briefsmith/internal/embedding"
	"briefsmith/internal/eval"
	"briefsmith/internal/generation"
	"briefsmith/internal/index"
	"briefsmith/internal/logging"
	"briefsmith/internal/retrieval"
	"briefsmith/internal/tasks"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// run flags
	taskKey    string
	jsonOut    bool
	useExample bool

	// index flags
	forceRebuild bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "briefsmith",
	Short: "briefsmith - grounded retrieval-and-synthesis pipeline",
	Long: `briefsmith turns a natural-language task request into a client-ready
document: evidence is retrieved from a private document corpus, drafted
deterministically or generatively, and checked by a verifier that refuses
to emit unsupported claims.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the vector index from the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, err := embedding.NewEngine(embeddingConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to create embedding engine: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		handle, err := index.Ensure(ctx,
			resolvePath(cfg.Corpus.Dir), resolvePath(cfg.Index.Dir),
			engine, cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap, forceRebuild)
		if err != nil {
			return err
		}

		logger.Info("index ready", zap.Int("chunks", handle.Len()))
		fmt.Printf("Index ready: %d chunks\n", handle.Len())
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [task text]",
	Short: "Run one task through the plan/research/draft/verify pipeline",
	Long: `Runs a single task invocation. With --example, the positional argument
is omitted and the canned task text for --task-key is used instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		taskText, err := resolveTaskText(args)
		if err != nil {
			return err
		}

		pipeline, watcher, err := buildPipeline(cmd.Context())
		if err != nil {
			return err
		}
		if watcher != nil {
			defer watcher.Close()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		st := pipeline.RunTask(ctx, taskText, taskKey)

		if jsonOut {
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode state: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Println(st.FinalOutput)
		fmt.Println()
		for _, row := range st.Trace {
			fmt.Printf("[%s/%s] %s -> %s\n", row.Step, row.Agent, row.Action, row.Outcome)
		}
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval [cases.jsonl]",
	Short: "Score the pipeline against a JSONL case file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := eval.LoadCases(args[0])
		if err != nil {
			return err
		}

		pipeline, watcher, err := buildPipeline(cmd.Context())
		if err != nil {
			return err
		}
		if watcher != nil {
			defer watcher.Close()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		fmt.Printf("Loaded %d eval cases from %s\n\n", len(cases), args[0])

		summary := eval.Run(ctx, pipeline, cases)
		for _, res := range summary.Results {
			mark := "PASS"
			if !res.Passed {
				mark = "FAIL"
			}
			fmt.Printf("%s %s (%s)\n", mark, res.Case.ID, res.Case.TaskKey)
			for _, f := range res.Failures {
				fmt.Printf("   - %s\n", f)
			}
		}

		fmt.Printf("\nTotal: %d  Passed: %d  Failed: %d\n",
			len(summary.Results), summary.Passed, summary.Failed)

		if summary.Failed > 0 {
			// Returned as an error so deferred cleanup and the post-run
			// hooks still fire before main reports the exit code.
			cmd.SilenceUsage = true
			return fmt.Errorf("%d of %d eval cases failed", summary.Failed, len(summary.Results))
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the example task catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		examples, err := tasks.Examples()
		if err != nil {
			return err
		}
		keys, err := tasks.ExampleKeys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Printf("%s\n  %s\n\n", key, examples[key].Description)
		}
		return nil
	},
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return cfg, err
	}
	logging.Configure(cfg.Logging)
	return cfg, nil
}

// buildPipeline wires config, embedding, generation, the cached index, and
// the optional corpus watcher into one agent pipeline.
func buildPipeline(ctx context.Context) (*agent.Pipeline, *index.Watcher, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	engine, err := embedding.NewEngine(embeddingConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}

	llm, err := generation.NewClient(generationConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	corpusDir := resolvePath(cfg.Corpus.Dir)
	indexDir := resolvePath(cfg.Index.Dir)

	cache := index.NewCache(func() (*index.Handle, error) {
		loadCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return index.Ensure(loadCtx, corpusDir, indexDir, engine,
			cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap, false)
	})

	var watcher *index.Watcher
	if cfg.Index.WatchCorpus {
		watcher, err = index.WatchCorpus(corpusDir, cache)
		if err != nil {
			logger.Warn("corpus watcher unavailable", zap.Error(err))
			watcher = nil
		}
	}

	retriever := retrieval.New(engine, cache)
	return agent.New(retriever, llm, corpusDir), watcher, nil
}

func resolveTaskText(args []string) (string, error) {
	if useExample {
		examples, err := tasks.Examples()
		if err != nil {
			return "", err
		}
		key := tasks.ParseKind(taskKey).String()
		ex, ok := examples[key]
		if !ok {
			return "", fmt.Errorf("no example task for key %q", taskKey)
		}
		return ex.Task, nil
	}

	if len(args) == 0 {
		return "", fmt.Errorf("task text required (or use --example with --task-key)")
	}
	return args[0], nil
}

func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

func embeddingConfig(cfg config.Config) embedding.Config {
	return embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OpenAIAPIKey:   cfg.Embedding.OpenAIAPIKey,
		OpenAIModel:    cfg.Embedding.OpenAIModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
	}
}

func generationConfig(cfg config.Config) generation.Config {
	return generation.Config{
		Provider:     cfg.Generation.Provider,
		OpenAIAPIKey: cfg.Generation.OpenAIAPIKey,
		OpenAIModel:  cfg.Generation.OpenAIModel,
		GenAIAPIKey:  cfg.Generation.GenAIAPIKey,
		GenAIModel:   cfg.Generation.GenAIModel,
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	indexCmd.Flags().BoolVar(&forceRebuild, "force", false, "Rebuild even when valid artifacts exist")

	runCmd.Flags().StringVarP(&taskKey, "task-key", "k", "", "Task key selecting the research and drafting strategy")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full terminal state as JSON")
	runCmd.Flags().BoolVar(&useExample, "example", false, "Use the canned example task for --task-key")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(tasksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
