// Command ripplecurve runs the chat engine HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ripplecurve/ripplecurve"
	checkpointmongo "github.com/ripplecurve/ripplecurve/checkpoint/mongo"
	"github.com/ripplecurve/ripplecurve/config"
	"github.com/ripplecurve/ripplecurve/document"
	"github.com/ripplecurve/ripplecurve/graph"
	"github.com/ripplecurve/ripplecurve/logging"
	"github.com/ripplecurve/ripplecurve/model"
	"github.com/ripplecurve/ripplecurve/model/anthropic"
	"github.com/ripplecurve/ripplecurve/model/openai"
	"github.com/ripplecurve/ripplecurve/server"
	"github.com/ripplecurve/ripplecurve/summarize"
	"github.com/ripplecurve/ripplecurve/tool"
	transcriptmongo "github.com/ripplecurve/ripplecurve/transcript/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefaultSlogLogger().Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	for _, warning := range cfg.Hazards() {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpoints, client, err := checkpointmongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("mongo connection failed", "uri", cfg.MongoURI, "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	transcripts := transcriptmongo.NewStore(client.Database(cfg.MongoDatabase))

	var chatModel model.Model
	switch cfg.Provider {
	case "anthropic":
		chatModel = anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.ChatModel != "" {
				o.Model = anthropicsdk.Model(cfg.ChatModel)
			}
		})
	default:
		oaClient := openaisdk.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		chatModel = openai.NewModelFromClient(&oaClient, func(o *openai.Options) {
			if cfg.ChatModel != "" {
				o.Model = cfg.ChatModel
			}
		})
	}
	embed := chromem.NewEmbeddingFuncOpenAI(cfg.OpenAIAPIKey, chromem.EmbeddingModelOpenAI(cfg.EmbedModel))

	search := tool.NewWebSearch(func(o *tool.WebSearchOptions) {
		o.APIKey = cfg.TavilyAPIKey
	})

	summarizer := summarize.New(chatModel, cfg.MaxMessages)
	g := graph.New(checkpoints, chatModel, summarizer,
		graph.WithTools(search),
		graph.WithDocumentSupport(document.NewFSLoader(cfg.DocumentDir), embed),
		graph.WithMaxToolIterations(cfg.MaxToolIterations),
		graph.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
		graph.WithLogger(logger),
	)

	engine := ripplecurve.NewEngine(g, checkpoints, transcripts, chatModel, logger)
	verifier := server.StaticTokenVerifier{
		Token:    cfg.AuthToken,
		Identity: server.Identity{ID: "local", Email: "local@localhost", Name: "Local User"},
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(engine, verifier, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
