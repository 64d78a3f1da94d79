package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/config"
	"github.com/doubletabai/askdb/pkg/corpus"
	"github.com/doubletabai/askdb/pkg/embedding"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/generator"
	"github.com/doubletabai/askdb/pkg/knowledgebase"
	"github.com/doubletabai/askdb/pkg/pipeline"
	"github.com/doubletabai/askdb/pkg/sampledb"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target, err := executor.Open(ctx, cfg.TargetDriver, cfg.TargetDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to target database")
	}
	defer target.Close()

	if cfg.SetupSampleDB {
		if err := sampledb.Setup(ctx, target, cfg.TargetDriver); err != nil {
			log.Fatal().Err(err).Msg("Failed to set up sample database")
		}
	}

	store, err := corpus.OpenStore(ctx, cfg.CorpusDriver, cfg.CorpusDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open training corpus")
	}
	defer store.Close()

	emb := newEmbedder(cfg)
	c, err := corpus.Open(ctx, store, emb)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training corpus")
	}

	chatCli := openai.NewClient(clientOptions(cfg.LLMBaseURL, cfg.OpenAIAPIKey)...)
	gen := generator.NewOpenAI(chatCli, cfg.LLMChatModel, cfg.LLMTemperature, cfg.ServiceTimeout)
	exec := executor.New(target, cfg.TargetDriver, cfg.ReadOnly, cfg.MaxRows, cfg.ServiceTimeout)

	svc := pipeline.New(c, c.Index, emb, gen, exec, cfg.RetrievalK, cfg.MaxContextChars,
		pipeline.RetryPolicy{Attempts: cfg.RetryAttempts, InitialInterval: cfg.RetryInitialInterval},
		pipeline.NewMetrics(prometheus.DefaultRegisterer))

	if cfg.SeedKnowledge {
		if _, err := knowledgebase.Populate(ctx, svc, cfg.TargetDriver); err != nil {
			log.Fatal().Err(err).Msg("Failed to populate knowledge base")
		}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	sid := uuid.NewString()
	pterm.DefaultBasicText.Println("Welcome to" + pterm.LightMagenta(" askdb ") + "- ask questions about your database in plain language.")
	pterm.DefaultBasicText.Printfln("Session ID: %s. Type /help for commands.", sid)
	if cfg.SetupSampleDB {
		pterm.DefaultBasicText.Println("Try one of these:")
		for _, q := range sampledb.Questions {
			pterm.DefaultBasicText.Println("  - " + q)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		newSession(svc).run(ctx, exitFunc(sid))
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigs:
	case <-done:
	}

	pterm.DefaultBasicText.Printf("Closing session %s\n", sid)
}

func exitFunc(sid string) func() {
	return func() {
		pterm.DefaultBasicText.Printf("Closing session %s\n", sid)
		os.Exit(1)
	}
}

func clientOptions(baseURL, apiKey string) []option.RequestOption {
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return opts
}

func newEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.EmbeddingProvider == config.EmbeddingProviderHash {
		return embedding.NewHashing(int(cfg.EmbeddingDimensions))
	}
	cli := openai.NewClient(clientOptions(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey)...)
	return embedding.NewOpenAI(cli, cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.ServiceTimeout)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics listener stopped")
	}
}
