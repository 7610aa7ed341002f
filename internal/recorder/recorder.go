package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/pushprobe/internal/config"
	"github.com/rickgao/pushprobe/internal/race"
)

// attemptRow is one persisted connection attempt.
type attemptRow struct {
	AttemptID        string
	SessionID        string
	ProfileName      string
	Success          bool
	RaceDetected     bool
	RaceType         string
	ConnectionTimeUs int64
	ErrorMessage     string
	EventsReceived   int
	RecordedAt       int64
}

// sessionRow is the one-per-session acceptance summary.
type sessionRow struct {
	SessionID          string
	Attempts           int
	Succeeded          int
	SevereCount        int
	FastSuccessRate    float64
	OverallSuccessRate float64
	SevereShare        float64
	Passed             bool
	DurationUs         int64
	RecordedAt         int64
}

// Metrics tracks recorder throughput.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// Recorder consumes attempt results and batch inserts them into the
// harness_attempts table.
type Recorder struct {
	cfg       config.RecorderConfig
	sessionID string
	logger    *slog.Logger

	input *resultBuffer

	db *pgxpool.Pool

	batch       []attemptRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Recorder. db may be nil only in tests that never flush.
func New(cfg config.RecorderConfig, sessionID string, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:       cfg,
		sessionID: sessionID,
		db:        db,
		logger:    logger.With("component", "recorder", "session_id", sessionID),
		input:     newResultBuffer(cfg.BufferSize),
		batch:     make([]attemptRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming results and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Record enqueues a result for persistence. It never blocks; if the recorder
// is stopped the result is dropped and counted.
func (r *Recorder) Record(res race.TestResult) {
	if !r.input.Send(res) {
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
	}
}

// Stop drains the buffer, flushes the final batch, and shuts down.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	r.input.Close()

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Drain anything the consumer did not get to before cancellation.
	for {
		res, ok := r.input.TryReceive()
		if !ok {
			break
		}
		r.appendRow(r.transform(res))
	}

	r.flush()

	return nil
}

// WriteSummary inserts the session's acceptance summary. Call it after
// Stop so every attempt row has already been flushed.
func (r *Recorder) WriteSummary(ctx context.Context, report race.AcceptanceReport, duration time.Duration) error {
	row := buildSessionRow(r.sessionID, report, duration)

	_, err := r.db.Exec(ctx, `
		INSERT INTO harness_sessions (session_id, attempts, succeeded, severe_count, fast_success_rate, overall_success_rate, severe_share, passed, duration_us, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING
	`, row.SessionID, row.Attempts, row.Succeeded, row.SevereCount, row.FastSuccessRate, row.OverallSuccessRate, row.SevereShare, row.Passed, row.DurationUs, row.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert session summary: %w", err)
	}

	r.logger.Info("session summary persisted", "passed", row.Passed, "attempts", row.Attempts)
	return nil
}

// buildSessionRow converts an acceptance report to its persisted form.
func buildSessionRow(sessionID string, report race.AcceptanceReport, duration time.Duration) sessionRow {
	return sessionRow{
		SessionID:          sessionID,
		Attempts:           report.Total,
		Succeeded:          report.Succeeded,
		SevereCount:        report.SevereCount,
		FastSuccessRate:    report.FastSuccessRate,
		OverallSuccessRate: report.OverallSuccessRate,
		SevereShare:        report.SevereShare,
		Passed:             report.Passed,
		DurationUs:         duration.Microseconds(),
		RecordedAt:         time.Now().UTC().UnixMicro(),
	}
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			res, ok := r.input.TryReceive()
			if !ok {
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			r.handleResult(res)
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush()
		}
	}
}

// handleResult transforms and adds a result to the batch.
func (r *Recorder) handleResult(res race.TestResult) {
	if r.appendRow(r.transform(res)) {
		r.flush()
	}
}

// appendRow adds a row to the batch and reports whether it is full.
func (r *Recorder) appendRow(row attemptRow) bool {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, row)
	return len(r.batch) >= r.cfg.BatchSize
}

// transform converts a TestResult to an attemptRow.
func (r *Recorder) transform(res race.TestResult) attemptRow {
	return attemptRow{
		AttemptID:        uuid.NewString(),
		SessionID:        r.sessionID,
		ProfileName:      res.ProfileName,
		Success:          res.Success,
		RaceDetected:     res.RaceDetected,
		RaceType:         string(res.RaceType),
		ConnectionTimeUs: res.ConnectionTime.Microseconds(),
		ErrorMessage:     res.ErrorMessage,
		EventsReceived:   len(res.EventsReceived),
		RecordedAt:       time.Now().UTC().UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush() {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]attemptRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed attempts",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(rows []attemptRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO harness_attempts (attempt_id, session_id, profile_name, success, race_detected, race_type, connection_time_us, error_message, events_received, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (attempt_id) DO NOTHING
		`, row.AttemptID, row.SessionID, row.ProfileName, row.Success, row.RaceDetected, row.RaceType, row.ConnectionTimeUs, row.ErrorMessage, row.EventsReceived, row.RecordedAt)
	}

	// Stop cancels r.ctx before the final flush, so inserts use their own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
