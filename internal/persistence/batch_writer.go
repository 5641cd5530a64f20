// Package persistence provides a write-behind buffer for the high
// volume bar upserts a full history sync produces. Single-row writes
// through the sqlite driver are transaction-per-statement; batching
// them cuts the sync time by orders of magnitude.
package persistence

import (
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"quant-core/internal/stock"
)

// writeOp is one queued statement.
type writeOp struct {
	query string
	args  []any
}

// BatchWriter groups queued writes into transactions, flushing when
// the buffer fills or the interval elapses.
type BatchWriter struct {
	db          *sql.DB
	buffer      []writeOp
	mu          sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup

	totalWrites  uint64
	totalBatches uint64
	totalErrors  uint64
}

// Stats reports batch writer counters.
type Stats struct {
	TotalWrites  uint64 `json:"total_writes"`
	TotalBatches uint64 `json:"total_batches"`
	TotalErrors  uint64 `json:"total_errors"`
	Pending      int    `json:"pending"`
}

// NewBatchWriter starts a writer flushing at maxSize operations or
// every interval, whichever comes first.
func NewBatchWriter(db *sql.DB, maxSize int, interval time.Duration) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 200
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		db:          db,
		buffer:      make([]writeOp, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()
	return bw
}

// QueueBar enqueues an upsert for one daily bar.
func (bw *BatchWriter) QueueBar(code string, b stock.Bar) {
	bw.queue(writeOp{
		query: `
			INSERT INTO bars (code, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume
		`,
		args: []any{code, b.Date.Format(stock.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume},
	})
}

func (bw *BatchWriter) queue(op writeOp) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, op)
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		if err := bw.Flush(); err != nil {
			log.Printf("batch writer: flush failed: %v", err)
		}
	}
}

// Flush writes all buffered operations in one transaction.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	ops := bw.buffer
	bw.buffer = make([]writeOp, 0, bw.maxSize)
	bw.mu.Unlock()

	atomic.AddUint64(&bw.totalWrites, uint64(len(ops)))
	atomic.AddUint64(&bw.totalBatches, 1)

	tx, err := bw.db.Begin()
	if err != nil {
		atomic.AddUint64(&bw.totalErrors, 1)
		return err
	}
	for _, op := range ops {
		if _, err := tx.Exec(op.query, op.args...); err != nil {
			tx.Rollback()
			atomic.AddUint64(&bw.totalErrors, 1)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		atomic.AddUint64(&bw.totalErrors, 1)
		return err
	}
	return nil
}

func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bw.Flush(); err != nil {
				log.Printf("batch writer: background flush failed: %v", err)
			}
		case <-bw.done:
			if err := bw.Flush(); err != nil {
				log.Printf("batch writer: final flush failed: %v", err)
			}
			return
		}
	}
}

// Pending returns the number of queued, unflushed operations.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// GetStats returns a point-in-time snapshot of the counters.
func (bw *BatchWriter) GetStats() Stats {
	return Stats{
		TotalWrites:  atomic.LoadUint64(&bw.totalWrites),
		TotalBatches: atomic.LoadUint64(&bw.totalBatches),
		TotalErrors:  atomic.LoadUint64(&bw.totalErrors),
		Pending:      bw.Pending(),
	}
}

// Close flushes remaining writes and stops the background loop.
func (bw *BatchWriter) Close() error {
	close(bw.done)
	bw.wg.Wait()
	return nil
}
