// Package observability keeps audit metrics in SQLite: one timeseries table
// that lives next to the run history, queried with plain SQL instead of an
// external metrics server.
//
// Persistence is async. Datapoints are buffered and flushed in one
// transaction when the buffer fills, on each tick and on Close.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/axecheck/internal/dbopen"
)

// Metric names recorded by the runner.
const (
	AuditDuration   = "audit_duration_ms"
	AuditViolations = "audit_violations"
	AuditNodes      = "audit_violation_nodes"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"` // e.g. audit, status
	Unit      string            `json:"unit,omitempty"`   // "milliseconds", "count"
}

// Query selects datapoints. Zero fields do not filter.
type Query struct {
	Name   string
	Labels map[string]string // every pair must match
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Metrics buffers datapoints and flushes them to SQLite in batches.
type Metrics struct {
	db            *sql.DB
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []*Metric

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures Metrics.
type Option func(*Metrics)

// WithBufferSize flushes once n datapoints are queued. Default 100.
func WithBufferSize(n int) Option { return func(m *Metrics) { m.bufferSize = n } }

// WithFlushInterval sets the periodic flush. Default 5s.
func WithFlushInterval(d time.Duration) Option { return func(m *Metrics) { m.flushInterval = d } }

// WithLogger sets the logger for flush errors.
func WithLogger(l *slog.Logger) Option { return func(m *Metrics) { m.logger = l } }

// New applies the schema to db and starts the flush loop.
func New(db *sql.DB, opts ...Option) (*Metrics, error) {
	if err := Init(db); err != nil {
		return nil, fmt.Errorf("observability: schema: %w", err)
	}
	m := &Metrics{
		db:            db,
		bufferSize:    100,
		flushInterval: 5 * time.Second,
		logger:        slog.Default(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	if m.bufferSize <= 0 {
		m.bufferSize = 1
	}
	m.buffer = make([]*Metric, 0, m.bufferSize)
	go m.flushLoop()
	return m, nil
}

// Record queues a datapoint. A zero Timestamp means now.
func (m *Metrics) Record(p *Metric) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, p)
	if len(m.buffer) >= m.bufferSize {
		m.flushLocked()
	}
}

// Flush writes the queued datapoints now.
func (m *Metrics) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// Query returns matching datapoints, newest first.
func (m *Metrics) Query(ctx context.Context, q Query) ([]*Metric, error) {
	s := "SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries WHERE 1=1"
	var args []any

	if q.Name != "" {
		s += " AND metric_name = ?"
		args = append(args, q.Name)
	}
	if !q.Since.IsZero() {
		s += " AND timestamp >= ?"
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		s += " AND timestamp <= ?"
		args = append(args, q.Until.UnixMilli())
	}
	keys := make([]string, 0, len(q.Labels))
	for k := range q.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s += " AND json_extract(labels, ?) = ?"
		args = append(args, "$."+k, q.Labels[k])
	}
	s += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		s += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := m.db.QueryContext(ctx, s, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query: %w", err)
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var (
			p          Metric
			ts         int64
			labelsJSON sql.NullString
		)
		if err := rows.Scan(&p.Name, &ts, &p.Value, &labelsJSON, &p.Unit); err != nil {
			return nil, fmt.Errorf("observability: scan: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts)
		if labelsJSON.Valid {
			_ = json.Unmarshal([]byte(labelsJSON.String), &p.Labels)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than before and returns the count removed.
func (m *Metrics) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := m.db.ExecContext(ctx, "DELETE FROM metrics_timeseries WHERE timestamp < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes the buffer and stops the flush loop. The database stays
// open.
func (m *Metrics) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

func (m *Metrics) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

func (m *Metrics) flushLocked() {
	if len(m.buffer) == 0 {
		return
	}
	// A failed batch is dropped; metrics never block audits.
	defer func() { m.buffer = m.buffer[:0] }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := dbopen.RunTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range m.buffer {
			var labels sql.NullString
			if len(p.Labels) > 0 {
				if b, err := json.Marshal(p.Labels); err == nil {
					labels = sql.NullString{String: string(b), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, p.Name, p.Timestamp.UnixMilli(), p.Value, labels, p.Unit); err != nil {
				return fmt.Errorf("insert %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Error("observability: flush", "datapoints", len(m.buffer), "error", err)
	}
}
