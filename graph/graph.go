// Package graph implements the per-turn orchestration state machine: a turn
// enters at START, is routed to the primary or document agent, may loop
// through the tool executor, and persists its state at END.
package graph

import (
	"context"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ripplecurve/ripplecurve/checkpoint"
	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/document"
	"github.com/ripplecurve/ripplecurve/logging"
	"github.com/ripplecurve/ripplecurve/model"
	"github.com/ripplecurve/ripplecurve/summarize"
	"github.com/ripplecurve/ripplecurve/tool"
)

// Node names as reported in node-boundary events.
const (
	NodeRouter        = "router"
	NodePrimaryAgent  = "primary_agent"
	NodeToolExecutor  = "tool_executor"
	NodeDocumentAgent = "document_agent"
)

// DefaultMaxToolIterations bounds the tool loop. The model electing not to
// request further tools is the normal exit; the cap is the abnormal one.
const DefaultMaxToolIterations = 5

// TurnInput is one incoming turn request after precondition validation.
type TurnInput struct {
	ThreadID string
	Message  string
	FileID   string
	FileType string
}

// Options configures a Graph.
type Options struct {
	MaxToolIterations int
	ChunkSize         int
	ChunkOverlap      int
	Loader            document.Loader
	Embedding         chromem.EmbeddingFunc
	Tools             []tool.Tool
	Logger            logging.Logger
}

// Graph composes the orchestration state machine for one engine instance.
// Turns on the same thread are serialized by an internal keyed lock; the
// checkpoint store itself carries no locking.
type Graph struct {
	checkpoints checkpoint.Store
	model       model.Model
	summarizer  *summarize.Summarizer
	tools       map[string]tool.Tool
	toolDefs    []model.ToolDefinition
	opts        Options
	locker      *core.Locker
	logger      logging.Logger
}

// New creates a Graph over the given checkpoint store, model, and summarizer.
func New(store checkpoint.Store, m model.Model, s *summarize.Summarizer, optFns ...func(o *Options)) *Graph {
	opts := Options{
		MaxToolIterations: DefaultMaxToolIterations,
		ChunkSize:         document.DefaultChunkSize,
		ChunkOverlap:      document.DefaultChunkOverlap,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}

	g := &Graph{
		checkpoints: store,
		model:       m,
		summarizer:  s,
		tools:       make(map[string]tool.Tool, len(opts.Tools)),
		opts:        opts,
		locker:      core.NewLocker(),
		logger:      opts.Logger,
	}
	for _, t := range opts.Tools {
		g.tools[t.Name()] = t
		g.toolDefs = append(g.toolDefs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return g
}

// WithTools registers the tool set bound to the primary agent.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = tools }
}

// WithDocumentSupport wires the loader and embedding function used by the
// document agent. Without it, file-attached turns fail.
func WithDocumentSupport(l document.Loader, embed chromem.EmbeddingFunc) func(o *Options) {
	return func(o *Options) {
		o.Loader = l
		o.Embedding = embed
	}
}

// WithMaxToolIterations caps the tool loop length.
func WithMaxToolIterations(n int) func(o *Options) {
	return func(o *Options) { o.MaxToolIterations = n }
}

// WithChunking sets the document splitter geometry.
func WithChunking(size, overlap int) func(o *Options) {
	return func(o *Options) {
		o.ChunkSize = size
		o.ChunkOverlap = overlap
	}
}

// WithLogger sets the graph logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// RunTurn executes one turn and returns the live event feed plus an error
// channel that yields at most one error. Both channels are closed when the
// run finishes. The thread identity event is always emitted first.
func (g *Graph) RunTurn(ctx context.Context, in TurnInput) (<-chan core.Event, <-chan error) {
	events := make(chan core.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		unlock := g.locker.Lock(in.ThreadID)
		defer unlock()

		tctx := core.NewTurnContext(ctx, in.ThreadID, core.NewID(), events, g.logger)
		if err := g.run(tctx, in); err != nil {
			g.logger.Error("turn failed", "thread_id", in.ThreadID, "error", err)
			errs <- err
		}
	}()

	return events, errs
}

// run is the START→…→END walk for one turn. State is persisted only at END;
// a failed node leaves the prior checkpoint untouched.
func (g *Graph) run(tctx *core.TurnContext, in TurnInput) error {
	if err := tctx.EmitEvent(core.NewThreadIDEvent(tctx.ThreadID, tctx.TurnID)); err != nil {
		return err
	}

	state, err := g.checkpoints.Get(tctx.Context, in.ThreadID)
	if err != nil {
		return core.NewPersistenceError("checkpoint_get", err)
	}
	if state == nil {
		state = &core.ConversationState{}
	}
	if err := state.Validate(); err != nil {
		return err
	}

	state.FileID = in.FileID
	state.FileType = in.FileType
	state.Append(core.NewUserMessage(in.Message))

	if err := tctx.EmitEvent(core.NewNodeEnterEvent(NodeRouter)); err != nil {
		return err
	}

	// Sole entry decision: a file attachment routes to the document agent.
	if state.FileID != "" {
		if err := g.runDocumentAgent(tctx, state); err != nil {
			return err
		}
	} else {
		if err := g.runPrimaryAgent(tctx, state); err != nil {
			return err
		}
	}

	if err := g.checkpoints.Put(tctx.Context, in.ThreadID, state); err != nil {
		return core.NewPersistenceError("checkpoint_put", err)
	}
	return nil
}
