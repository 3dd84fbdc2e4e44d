// Command lectern answers questions about a local book library.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/lectern/internal/adapters/driven/ai"
	"github.com/custodia-labs/lectern/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/lectern/internal/adapters/driven/config/env"
	"github.com/custodia-labs/lectern/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lectern/internal/adapters/driven/storage"
	"github.com/custodia-labs/lectern/internal/adapters/driving/cli"
	"github.com/custodia-labs/lectern/internal/connectors/filesystem"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/core/services"
	"github.com/custodia-labs/lectern/internal/logger"
	"github.com/custodia-labs/lectern/internal/normalisers"
	"github.com/custodia-labs/lectern/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup := wire()
	defer cleanup()

	cli.SetVersion(version)
	if err := cli.Execute(ctx); err != nil {
		stop()
		cleanup()
		os.Exit(1)
	}
}

// wire builds the services and installs them in the CLI. A failure in
// the query path is recorded rather than fatal so that settings and
// version keep working on a broken configuration.
func wire() func() {
	env.LoadDotEnv()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening config: %v\n", err)
		os.Exit(1)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settingsService.SetOverrides(env.Apply)

	extractors := normalisers.NewDefaultRegistry()
	svc := cli.Services{
		Settings: settingsService,
		Supports: filesystem.SupportsFunc(extractors.Supports),
		Library:  domain.DefaultSettings().Library,
	}

	settings, err := settingsService.Get()
	if err == nil {
		err = settings.Validate()
	}
	if err != nil {
		svc.Err = err
		cli.SetServices(svc)
		return func() {}
	}
	svc.Library = settings.Library

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				logger.Warn("shutdown: %v", cerr)
			}
		}
		closers = nil
	}

	if err := wireServices(settings, extractors, &svc, &closers); err != nil {
		svc.Err = err
	}
	cli.SetServices(svc)
	return cleanup
}

func wireServices(
	settings *domain.Settings,
	extractors *normalisers.Registry,
	svc *cli.Services,
	closers *[]func() error,
) error {
	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	pipeline, err := processors.BuildPipeline(settings.Chunking.Processors)
	if err != nil {
		return domain.NewConfigurationError("chunking.processors", "%v", err)
	}
	chunker, err := postprocessors.BuildChunker(map[string]any{
		"chunk_size": settings.Chunking.ChunkSizeWords,
		"overlap":    settings.Chunking.OverlapWords,
	})
	if err != nil {
		return err
	}

	store, err := storage.New(settings.Store)
	if err != nil {
		return err
	}
	*closers = append(*closers, store.Close)

	provider, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return err
	}
	*closers = append(*closers, provider.Close)

	var opts []services.GatewayOption
	if settings.Cache.IsEnabled() {
		if cache, cerr := redis.New(settings.Cache); cerr != nil {
			logger.Warn("embedding cache disabled: %v", cerr)
		} else {
			*closers = append(*closers, cache.Close)
			opts = append(opts, services.WithEmbeddingCache(cache))
		}
	}
	embedder := services.NewEmbeddingGateway(provider, settings.Embedding, opts...)

	svc.Query = services.NewQueryProcessor(embedder, store, settings.Retrieval)
	svc.Ingest = services.NewIngestService(
		filesystem.NewDiscoverer(extractors.Supports),
		extractors,
		pipeline,
		chunker,
		embedder,
		store,
		settings.Library,
		settings.Embedding.BatchSize,
	)

	llm, err := newLLM(&settings.LLM)
	if err != nil {
		logger.Warn("answers disabled: %v", err)
		return nil
	}
	*closers = append(*closers, llm.Close)

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return err
	}
	svc.Response = services.NewResponseGenerator(llm, prompts, settings.Generation)
	return nil
}

// newLLM returns the configured language model. A missing API key leaves
// answers disabled while retrieval keeps working.
func newLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		return nil, errors.New("no language model configured")
	}
	return ai.CreateLLMService(settings)
}
