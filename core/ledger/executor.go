package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marginledger/core/events"
	"marginledger/core/state"
	"marginledger/native/request"
	"marginledger/observability/metrics"
	"marginledger/storage"
)

var (
	ErrEmptyBatch     = errors.New("ledger: batch has no instructions")
	ErrDuplicateVenue = errors.New("ledger: venue already registered")
	// ErrMissingCleanup aborts a batch that leaves a setup unconsumed.
	ErrMissingCleanup = request.ErrMissingCleanup
)

// Receipt describes a committed batch.
type Receipt struct {
	BatchID   string
	Timestamp time.Time
	Events    []events.Event
}

// Executor applies batches atomically against a database. Batches are
// serialised: one batch observes the committed result of the previous one.
type Executor struct {
	mu      sync.Mutex
	db      storage.Database
	venues  map[string]Exchanger
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.LedgerMetrics
	tracer  trace.Tracer
	nowFn   func() time.Time
}

// NewExecutor creates an executor over db. Metrics are recorded on the
// process-wide ledger registry.
func NewExecutor(db storage.Database) *Executor {
	return &Executor{
		db:      db,
		venues:  make(map[string]Exchanger),
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: metrics.Ledger(),
		tracer:  otel.Tracer("marginledger/core/ledger"),
		nowFn:   time.Now,
	}
}

// RegisterVenue makes an exchange venue available to Exchange instructions.
func (x *Executor) RegisterVenue(name string, venue Exchanger) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.venues[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVenue, name)
	}
	x.venues[name] = venue
	return nil
}

// SetEmitter configures where events of committed batches are published.
func (x *Executor) SetEmitter(emitter events.Emitter) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if emitter == nil {
		x.emitter = events.NoopEmitter{}
		return
	}
	x.emitter = emitter
}

func (x *Executor) SetLogger(logger *slog.Logger) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	x.logger = logger
}

// SetMetrics overrides the metrics sink. A nil sink disables metrics.
func (x *Executor) SetMetrics(m *metrics.LedgerMetrics) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.metrics = m
}

func (x *Executor) SetNowFunc(now func() time.Time) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	x.nowFn = now
}

// Execute applies every instruction of the batch in order. Either all of them
// take effect and the receipt is returned, or none do and the error names the
// failing instruction.
func (x *Executor) Execute(ctx context.Context, batch Batch) (*Receipt, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	batchID := uuid.NewString()
	ctx, span := x.tracer.Start(ctx, "ledger.Execute", trace.WithAttributes(
		attribute.String("ledger.batch_id", batchID),
		attribute.Int("ledger.instructions", len(batch.Instructions)),
	))
	defer span.End()

	started := time.Now()
	now := x.nowFn()
	names := make([]string, 0, len(batch.Instructions))
	for _, instr := range batch.Instructions {
		names = append(names, instr.Name())
	}

	receipt, err := x.execute(ctx, batchID, now, batch)
	elapsed := time.Since(started)
	if err != nil {
		kind := Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		x.metrics.ObserveBatch(metrics.OutcomeAborted, names, elapsed)
		x.metrics.ObserveError(string(kind))
		level := slog.LevelWarn
		if kind == KindAccounting || kind == KindInternal {
			level = slog.LevelError
		}
		x.logger.Log(ctx, level, "batch aborted",
			slog.String("batch_id", batchID),
			slog.Int("instructions", len(names)),
			slog.String("kind", string(kind)),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return nil, err
	}
	x.metrics.ObserveBatch(metrics.OutcomeCommitted, names, elapsed)
	x.logger.Info("batch committed",
		slog.String("batch_id", batchID),
		slog.Int("instructions", len(names)),
		slog.Int("events", len(receipt.Events)),
		slog.Duration("duration", elapsed))
	return receipt, nil
}

func (x *Executor) execute(ctx context.Context, batchID string, now time.Time, batch Batch) (*Receipt, error) {
	if len(batch.Instructions) == 0 {
		return nil, ErrEmptyBatch
	}
	manager := state.NewManager(x.db)
	buffer := &events.Buffer{}
	env := newEnv(manager, buffer, now, x.venues)

	for i, instr := range batch.Instructions {
		if instr == nil {
			manager.Discard()
			return nil, fmt.Errorf("ledger: instruction %d: nil instruction", i)
		}
		if err := ctx.Err(); err != nil {
			manager.Discard()
			return nil, err
		}
		if err := instr.apply(ctx, env); err != nil {
			manager.Discard()
			return nil, fmt.Errorf("ledger: instruction %d (%s): %w", i, instr.Name(), err)
		}
	}

	pending, err := manager.PendingRequests()
	if err != nil {
		manager.Discard()
		return nil, err
	}
	if len(pending) > 0 {
		manager.Discard()
		return nil, fmt.Errorf("%w: %s for %s", ErrMissingCleanup, pending[0].Kind, pending[0].Owner)
	}

	vaults, err := manager.Vaults()
	if err != nil {
		manager.Discard()
		return nil, err
	}
	if err := manager.Commit(); err != nil {
		return nil, fmt.Errorf("ledger: commit: %w", err)
	}
	for _, v := range vaults {
		x.metrics.SetVault(v.Asset, v.TotalAssets, v.TotalBorrowed)
	}

	receipt := &Receipt{BatchID: batchID, Timestamp: now, Events: buffer.Events()}
	buffer.Flush(x.emitter)
	return receipt, nil
}
