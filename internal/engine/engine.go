// Package engine is the entry point for executing refactoring operations
// against a project on disk. It validates operations, dispatches them to
// the matching orchestrator, persists the edits and reports the outcome the
// files on disk actually show.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reshape/internal/batch"
	"reshape/internal/cache"
	"reshape/internal/config"
	"reshape/internal/crawler"
	"reshape/internal/journal"
	"reshape/internal/operation"
	"reshape/internal/refactor"
	"reshape/internal/source"
	"reshape/internal/symbol"
	"reshape/internal/verify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoJournal is returned by history queries when no journal is configured.
var ErrNoJournal = errors.New("operation journal is not configured")

// Engine owns one project and executes operations against it.
type Engine struct {
	cfg      *config.Config
	log      *zap.Logger
	fs       *cache.FileSystemCache
	project  *source.Project
	finder   *symbol.Finder
	verifier *verify.Verifier
	crawler  *crawler.Crawler
	journal  journal.Store
	watcher  *cache.Watcher
	stop     context.CancelFunc

	// orchestrator picks the orchestrator for an operation type.
	orchestrator func(refactor.Env, operation.Type) refactor.Orchestrator

	// mu serializes mutation, persistence and verification.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithJournal records operations into store instead of the configured
// journal path. The engine closes store on Close.
func WithJournal(store journal.Store) Option {
	return func(e *Engine) {
		e.journal = store
	}
}

// New creates an engine for cfg.Project.Root.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{cfg: cfg, log: zap.NewNop(), orchestrator: refactor.For}
	for _, opt := range opts {
		opt(e)
	}

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	e.fs, err = cache.NewFileSystemCache(cfg.Cache.ContentEntries, cfg.Cache.ExistenceEntries)
	if err != nil {
		return nil, err
	}
	e.crawler, err = crawler.NewCrawler(cfg.Project.Include, cfg.Project.Exclude, e.log.Named("crawler"))
	if err != nil {
		return nil, err
	}
	e.project = source.NewProject(root, e.fs, e.log.Named("source"))
	e.finder = symbol.NewFinder(e.project)
	e.verifier = verify.New(e.project, e.log.Named("verify"))

	if e.journal == nil && cfg.Journal.Path != "" {
		path := cfg.Journal.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		store, err := journal.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		e.journal = store
	}

	if cfg.Cache.Watch {
		if err := e.startWatcher(); err != nil {
			e.Close()
			return nil, err
		}
	}

	e.log.Info("engine ready", zap.String("root", root), zap.Bool("journal", e.journal != nil), zap.Bool("watch", cfg.Cache.Watch))
	return e, nil
}

// Root returns the absolute project root.
func (e *Engine) Root() string {
	return e.project.Root()
}

// Close stops the watcher and closes the journal.
func (e *Engine) Close() error {
	var errs []error
	if e.watcher != nil {
		e.stop()
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	if e.journal != nil {
		errs = append(errs, e.journal.Close())
		e.journal = nil
	}
	return errors.Join(errs...)
}

// Execute runs one operation and returns its verified result. It never
// returns nil.
func (e *Engine) Execute(ctx context.Context, op operation.Operation) *operation.Result {
	return e.execute(ctx, op, "")
}

// ExecuteBatch runs b through the batch scheduler.
func (e *Engine) ExecuteBatch(ctx context.Context, b operation.Batch) *operation.BatchResult {
	id := uuid.NewString()
	log := e.log.With(zap.String("batch", id))
	log.Info("executing batch", zap.Int("operations", len(b.Operations)))

	sched := batch.NewScheduler(
		func(ctx context.Context, op operation.Operation) *operation.Result {
			return e.execute(ctx, op, id)
		},
		batch.WithOrdering(batch.Ordering(e.cfg.Batch.Ordering)),
		batch.WithMaxParallel(e.cfg.Batch.MaxParallel),
		batch.WithLogger(log),
	)
	out := sched.Run(ctx, b)
	out.BatchID = id

	log.Info("batch finished",
		zap.Bool("success", out.Success),
		zap.Int("succeeded", out.Summary.Succeeded),
		zap.Int("failed", out.Summary.Failed),
		zap.Int("skipped", out.Summary.Skipped))
	return out
}

// Symbols lists the declarations of path.
func (e *Engine) Symbols(path string) ([]source.Declaration, error) {
	f, err := e.project.Reload(e.project.Abs(path))
	if err != nil {
		return nil, err
	}
	out := make([]source.Declaration, 0, len(f.Decls))
	for _, d := range f.Decls {
		out = append(out, *d)
	}
	return out, nil
}

// History returns the latest journal entries, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if e.journal == nil {
		return nil, ErrNoJournal
	}
	return e.journal.Recent(ctx, limit)
}

// BatchHistory returns the journal entries of one batch.
func (e *Engine) BatchHistory(ctx context.Context, batchID string) ([]journal.Entry, error) {
	if e.journal == nil {
		return nil, ErrNoJournal
	}
	return e.journal.Batch(ctx, batchID)
}

func (e *Engine) execute(ctx context.Context, op operation.Operation, batchID string) *operation.Result {
	op.Normalize()
	log := e.log.With(zap.String("type", string(op.Type)), zap.String("selector", op.Selector.String()))

	res := operation.NewResult(op)
	if err := e.validate(op); err != nil {
		log.Info("operation rejected", zap.Error(err))
		res.Fail(err)
		e.record(ctx, batchID, res)
		return res
	}

	e.mu.Lock()
	res = e.run(ctx, op, log)
	e.mu.Unlock()

	if res.Success {
		log.Info("operation succeeded", zap.Strings("affected", res.AffectedFiles), zap.Int("warnings", len(res.Warnings)))
	} else {
		log.Info("operation failed", zap.String("kind", string(res.ErrorKind)), zap.String("error", res.Error))
	}
	e.record(ctx, batchID, res)
	return res
}

// run executes op while holding e.mu.
func (e *Engine) run(ctx context.Context, op operation.Operation, log *zap.Logger) (res *operation.Result) {
	if err := e.loadProject(ctx); err != nil {
		return operation.NewResult(op).Fail(operation.Wrap(operation.KindInternal, err, "failed to load project"))
	}

	// 1. Orchestrate in memory
	res = e.orchestrate(ctx, op)
	if !res.Success {
		if discarded := e.project.Discard(); len(discarded) > 0 {
			log.Debug("discarded unsaved edits", zap.Strings("files", discarded))
		}
		return res
	}

	// 2. Persist
	saved, err := e.project.SaveAll()
	res.AddAffected(saved...)
	if err != nil {
		e.project.Discard()
		return res.Fail(operation.Wrap(operation.KindInternal, err, "failed to persist changes"))
	}

	// 3. Verify against disk
	ok, warnings, problems := e.verifier.Verify(res)
	res.Warnings = append(res.Warnings, warnings...)
	if !ok {
		return res.Fail(operation.Errorf(operation.KindVerificationFailure, "verification failed: %s", strings.Join(problems, "; ")))
	}
	if op.Type == operation.TypeMove && len(res.Dependencies) > 0 {
		if missing := e.verifier.VerifyDependencies(op.TargetFilePath, res.Dependencies); len(missing) > 0 {
			return res.Fail(operation.Errorf(operation.KindDependencyVerification,
				"%s is missing imports for: %s", e.project.Rel(op.TargetFilePath), strings.Join(missing, ", ")))
		}
	}
	res.Verified = true
	return res
}

func (e *Engine) orchestrate(ctx context.Context, op operation.Operation) (res *operation.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("orchestrator panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = operation.NewResult(op).Fail(operation.Errorf(operation.KindInternal, "internal error: %v", r))
		}
	}()

	env := refactor.Env{Project: e.project, Finder: e.finder, FS: e.fs, Log: e.log.Named("refactor")}
	orch := e.orchestrator(env, op.Type)
	if orch == nil {
		return operation.NewResult(op).Fail(operation.Errorf(operation.KindValidation, "unknown operation type %q", op.Type))
	}
	return orch.Execute(ctx, op)
}

// loadProject makes every project file visible to reference search.
func (e *Engine) loadProject(ctx context.Context) error {
	files, err := e.crawler.Scan(ctx, e.project.Root())
	if err != nil {
		return err
	}
	if err := e.project.LoadAll(files); err != nil {
		// Unparseable files are skipped; their references are not updated.
		e.log.Warn("some project files could not be loaded", zap.Error(err))
	}
	if e.watcher != nil {
		for _, f := range files {
			if err := e.watcher.Add(filepath.Dir(f)); err != nil {
				e.log.Debug("watch failed", zap.Error(err))
			}
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, batchID string, res *operation.Result) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Record(context.WithoutCancel(ctx), batchID, res); err != nil {
		e.log.Warn("failed to journal operation", zap.Error(err))
	}
}

func (e *Engine) startWatcher() error {
	w, err := cache.NewWatcher(e.project.Changed, e.log.Named("watch"))
	if err != nil {
		return err
	}
	if err := w.Add(e.project.Root()); err != nil {
		w.Close()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.watcher, e.stop = w, cancel
	w.Start(ctx)
	return nil
}
