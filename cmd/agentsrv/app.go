package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tagus/enterprise-agents/pkg/agents"
	"github.com/tagus/enterprise-agents/pkg/blob"
	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/chat"
	"github.com/tagus/enterprise-agents/pkg/config"
	"github.com/tagus/enterprise-agents/pkg/datastore/postgres"
	"github.com/tagus/enterprise-agents/pkg/filegen"
	"github.com/tagus/enterprise-agents/pkg/ingest"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/llm/azureopenai"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/microservice"
	"github.com/tagus/enterprise-agents/pkg/requestlog"
	"github.com/tagus/enterprise-agents/pkg/retrieval"
	"github.com/tagus/enterprise-agents/pkg/sqlanalyst"
	"github.com/tagus/enterprise-agents/pkg/tracing"
	"github.com/tagus/enterprise-agents/pkg/vectorstore/weaviate"
	"github.com/tagus/enterprise-agents/pkg/websearch"
	"github.com/tagus/enterprise-agents/pkg/workflow"
)

// localBlobURL prefixes blob names when no storage account is configured
const localBlobURL = "http://localhost/blobs"

// app holds the shared clients every agent is built from
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *agents.Registry
	tracer   *tracing.OTelTracer
	metrics  *microservice.Metrics

	llm      interfaces.LLM
	embedder interfaces.Embedder
	images   interfaces.ImageGenerator
	vectors  *weaviate.Store
	redis    *redis.Client
	pg       *postgres.Client
	backend  blob.Backend
	web      *websearch.Client
	analyst  *sqlanalyst.Analyst

	// checkpoints is shared by the agents; each agent has its own table
	checkpoints memory.Checkpointer

	service *chat.Service
	closers []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile, envFiles...)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.WithLevel(logLevel), logging.WithComponent("agentsrv"), logging.WithConsole(!cfg.IsProduction()))

	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: registry, metrics: microservice.NewMetrics()}
	if err := a.connect(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	if err := a.buildService(); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	cfg := a.cfg

	tracer, err := tracing.NewOTelTracer(ctx, tracing.OTelConfig{
		Enabled:           cfg.Tracing.OpenTelemetry.Enabled,
		ServiceName:       cfg.Tracing.OpenTelemetry.ServiceName,
		CollectorEndpoint: cfg.Tracing.OpenTelemetry.CollectorEndpoint,
	})
	if err != nil {
		return err
	}
	a.tracer = tracer
	a.closers = append(a.closers, tracer.Shutdown)

	llmCfg := cfg.LLM.AzureOpenAI
	a.llm = tracing.NewTracedLLM(azureopenai.NewClient(llmCfg.APIKey, llmCfg.BaseURL, llmCfg.Deployment,
		azureopenai.WithAPIVersion(llmCfg.APIVersion),
		azureopenai.WithTimeout(llmCfg.Timeout),
		azureopenai.WithLogger(a.logger),
	), tracer)

	emb := cfg.LLM.Embedding
	a.embedder = azureopenai.NewEmbeddingClient(emb.APIKey, emb.BaseURL, emb.Deployment,
		azureopenai.WithEmbeddingAPIVersion(emb.APIVersion),
		azureopenai.WithDimensions(emb.Dimensions),
		azureopenai.WithMaxBatchSize(emb.MaxBatchSize),
		azureopenai.WithEmbeddingLogger(a.logger),
	)

	img := cfg.LLM.ImageGen
	a.images = azureopenai.NewImageClient(img.APIKey, img.BaseURL, img.Deployment,
		azureopenai.WithImageAPIVersion(img.APIVersion),
		azureopenai.WithImageLogger(a.logger),
	)

	a.vectors, err = weaviate.New(weaviate.Config{
		Host:   cfg.VectorStore.Weaviate.Host,
		Scheme: cfg.VectorStore.Weaviate.Scheme,
		APIKey: cfg.VectorStore.Weaviate.APIKey,
	}, weaviate.WithEmbedder(a.embedder), weaviate.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to create weaviate store: %w", err)
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Memory.Redis.URL,
		Password: cfg.Memory.Redis.Password,
		DB:       cfg.Memory.Redis.DB,
	})
	a.closers = append(a.closers, func(context.Context) error { return a.redis.Close() })

	if cfg.DataStore.Postgres.DSN != "" {
		a.pg, err = postgres.New(ctx, cfg.DataStore.Postgres.DSN, postgres.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.pg.Close() })
	} else {
		a.logger.Warn(ctx, "POSTGRES_DSN not set, checkpoints stay in memory and requests are not logged", nil)
	}

	if cfg.Blob.Azure.AccountURL != "" {
		a.backend, err = blob.NewAzureBackend(blob.AzureConfig{
			AccountURL:    cfg.Blob.Azure.AccountURL,
			ContainerName: cfg.Blob.Azure.ContainerName,
			TenantID:      cfg.Blob.Azure.TenantID,
			ClientID:      cfg.Blob.Azure.ClientID,
			ClientSecret:  cfg.Blob.Azure.ClientSecret,
		})
		if err != nil {
			return err
		}
	} else {
		a.logger.Warn(ctx, "BLOB_ACCOUNT_URL not set, files are kept in memory", nil)
		a.backend = blob.NewMemoryBackend()
	}

	if key := cfg.Tools.WebSearch.BingSubscriptionKey; key != "" {
		a.web = websearch.New(key,
			websearch.WithSearchURL(cfg.Tools.WebSearch.BingSearchURL),
			websearch.WithCount(cfg.Tools.WebSearch.Count),
			websearch.WithLogger(a.logger),
		)
	}

	if cfg.SQLAnalyst.URL != "" && cfg.SQLAnalyst.WarehouseDSN != "" {
		db, err := sqlanalyst.Open(cfg.SQLAnalyst.WarehouseDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		warehouse := sqlanalyst.NewWarehouse(db,
			sqlanalyst.WithRowLimit(cfg.SQLAnalyst.RowLimit),
			sqlanalyst.WithWarehouseLogger(a.logger),
		)
		a.analyst = sqlanalyst.New(cfg.SQLAnalyst.URL, cfg.SQLAnalyst.Token, cfg.SQLAnalyst.SemanticModel, warehouse,
			sqlanalyst.WithLogger(a.logger))
	}
	return nil
}

func (a *app) blobURL() string {
	if a.cfg.Blob.Azure.AccountURL == "" {
		return localBlobURL
	}
	return blob.ContainerURL(a.cfg.Blob.Azure.AccountURL, a.cfg.Blob.Azure.ContainerName)
}

func (a *app) buildService() error {
	var opts []chat.Option
	opts = append(opts, chat.WithLogger(a.logger))
	if loc, err := time.LoadLocation(strings.TrimSpace(a.cfg.Server.Timezone)); err == nil {
		opts = append(opts, chat.WithLocation(loc))
	} else {
		a.logger.Warn(context.Background(), "Unknown timezone, using the default", map[string]interface{}{"timezone": a.cfg.Server.Timezone})
	}
	a.service = chat.New(opts...)

	for _, profile := range a.registry.All() {
		agent, err := a.buildAgent(profile)
		if err != nil {
			return fmt.Errorf("agent %s: %w", profile.Name, err)
		}
		if err := a.service.Register(agent); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) buildAgent(profile *agents.Profile) (*chat.Agent, error) {
	logger := logging.New(logging.WithLevel(logLevel), logging.WithComponent(profile.Name), logging.WithConsole(!a.cfg.IsProduction()))

	store := blob.New(a.backend, a.blobURL(), profile.Name, blob.WithLogger(logger))
	ch := chains.New(a.llm, chains.WithVisionLLM(a.llm), chains.WithLogger(logger))

	history := tracing.NewTracedHistory(memory.NewRedisHistory(a.redis,
		memory.WithTurns(profile.HistoryTurns),
		memory.WithTTL(a.cfg.Memory.Redis.TTL),
		memory.WithLogger(logger),
	), a.tracer)

	deps := workflow.Deps{
		Chains: ch,
		Retriever: retrieval.New(a.embedder, a.vectors,
			retrieval.WithClass(profile.Collection()),
			retrieval.WithK(a.cfg.Retrieval.K),
			retrieval.WithThreshold(a.cfg.Retrieval.ScoreThreshold),
			retrieval.WithLogger(logger),
		),
		Images:         filegen.NewImageTool(a.images, store, filegen.WithImageLogger(logger)),
		PDF:            filegen.NewPDFTool(store, logger),
		Docx:           filegen.NewDocxTool(store, logger),
		Charts:         filegen.NewChartTool(store, logger),
		Checkpoints:    a.checkpointer(),
		AnalystHistory: history,
	}
	if a.web != nil {
		deps.Web = a.web
	}
	if a.analyst != nil {
		deps.SQL = a.analyst
	}

	routes := a.routesFor(profile, deps)
	hooks := workflow.ChainHooks(
		a.metrics.GraphHooks(profile.Name),
		tracing.GraphHooks(a.tracer, profile.Name),
	)
	wf, err := workflow.New(workflow.Config{
		Agent:             profile.Name,
		EnterpriseContext: profile.EnterpriseContext(),
		Routes:            routes,
		Gather:            profile.Gather,
	}, deps, workflow.WithLogger(logger), workflow.WithHooks(hooks))
	if err != nil {
		return nil, err
	}

	files := ingest.New(profile.Name, a.embedder, a.vectors, store,
		ingest.WithClass(profile.Collection()),
		ingest.WithChunkSize(profile.ChunkSize),
		ingest.WithRewriter(ch),
		ingest.WithLogger(logger),
	)

	return &chat.Agent{
		Profile:  profile,
		Workflow: wf,
		History:  history,
		Images:   store,
		Topics:   ch,
		Files:    files,
	}, nil
}

// routesFor drops the routes whose backing service is not configured
func (a *app) routesFor(profile *agents.Profile, deps workflow.Deps) []chains.Route {
	var routes []chains.Route
	for _, route := range profile.RouteSet() {
		switch {
		case route == chains.RouteWebSearch && deps.Web == nil,
			route == chains.RouteSQL && deps.SQL == nil:
			a.logger.Warn(context.Background(), "Route disabled, service not configured", map[string]interface{}{
				"agent": profile.Name,
				"route": string(route),
			})
			continue
		}
		routes = append(routes, route)
	}
	return routes
}

func (a *app) checkpointer() memory.Checkpointer {
	if a.checkpoints == nil {
		if a.pg != nil {
			a.checkpoints = memory.NewPostgresCheckpointer(a.pg, a.logger)
		} else {
			a.checkpoints = memory.NewMemoryCheckpointer()
		}
	}
	return a.checkpoints
}

func (a *app) requestLog() requestlog.Logger {
	if a.pg == nil {
		return nil
	}
	return requestlog.NewPostgresLogger(a.pg, requestlog.DefaultTable)
}

// Close releases clients in reverse order of creation
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadRegistry() (*agents.Registry, error) {
	if agentsFile != "" {
		return agents.LoadFile(agentsFile)
	}
	return agents.Load()
}
