package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/safesnek/logging"
)

// ErrRecorderClosed is returned by Record after Close.
var ErrRecorderClosed = errors.New("recorder is closed")

// RecorderConfig controls when buffered rows are flushed to a batch file.
type RecorderConfig struct {
	Dir        string
	FlushRows  int           // flush once this many rows are buffered
	FlushEvery time.Duration // flush at this interval regardless of count
	Logger     *slog.Logger
}

// Recorder buffers DecisionRows from many goroutines and writes them out in
// batches from a single background goroutine.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger

	mu     sync.Mutex
	buf    []DecisionRow
	closed bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	statsMu sync.Mutex
	stats   RecorderStats
}

// RecorderStats counts finished batches. Last is the newest batch path.
type RecorderStats struct {
	Batches int
	Rows    int
	Failed  int
	Last    string
}

// NewRecorder starts the flush loop. Zero FlushRows and FlushEvery get
// defaults of 1000 rows and one minute.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("recorder dir is required")
	}
	if cfg.FlushRows <= 0 {
		cfg.FlushRows = 1000
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = time.Minute
	}

	r := &Recorder{
		cfg:    cfg,
		logger: logging.OrDefault(cfg.Logger),
		buf:    make([]DecisionRow, 0, cfg.FlushRows),
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

// Record queues one row. It never blocks on disk.
func (r *Recorder) Record(row DecisionRow) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.buf = append(r.buf, row)
	full := len(r.buf) >= r.cfg.FlushRows
	r.mu.Unlock()

	if full {
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close flushes whatever is buffered and stops the background goroutine.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if r.stats.Failed > 0 {
		return errors.New("one or more decision batches failed to write")
	}
	return nil
}

func (r *Recorder) Stats() RecorderStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Recorder) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			r.flush("close")
			return
		case <-ticker.C:
			r.flush("ticker")
		case <-r.kick:
			r.flush("count")
		}
	}
}

func (r *Recorder) flush(reason string) {
	r.mu.Lock()
	rows := r.buf
	r.buf = make([]DecisionRow, 0, r.cfg.FlushRows)
	r.mu.Unlock()

	if len(rows) == 0 {
		return
	}

	path, err := WriteBatch(r.cfg.Dir, rows)

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if err != nil {
		r.stats.Failed++
		r.logger.Error("decision flush failed", "reason", reason, "rows", len(rows), "err", err)
		return
	}
	r.stats.Batches++
	r.stats.Rows += len(rows)
	r.stats.Last = path
	r.logger.Info("decision batch written", "reason", reason, "rows", len(rows), "path", path)
}
