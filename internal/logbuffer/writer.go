package logbuffer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cinescope/api/internal/model"
	"gorm.io/gorm"
)

// Sink receives flushed batches. Implemented by GormSink; tests substitute
// a recording fake.
type Sink interface {
	WriteBatch(ctx context.Context, entries []model.RequestLog) error
}

// GormSink writes batches to the request_logs table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) WriteBatch(ctx context.Context, entries []model.RequestLog) error {
	return s.db.WithContext(ctx).CreateInBatches(entries, 500).Error
}

type WriterConfig struct {
	Capacity  int
	FlushSize int
	Interval  time.Duration
}

// Writer buffers request-log rows in a fixed-capacity queue and flushes
// them on a size threshold or a timer tick. There is no durability story:
// entries that cannot be buffered or written are dropped to the console.
type Writer struct {
	sink      Sink
	capacity  int
	flushSize int
	interval  time.Duration

	mu      sync.Mutex
	entries []model.RequestLog
	running bool

	flushChan chan struct{}
	stopChan  chan struct{}
}

func NewWriter(sink Sink, cfg WriterConfig) *Writer {
	if cfg.Capacity == 0 {
		cfg.Capacity = 1000
	}
	if cfg.FlushSize == 0 {
		cfg.FlushSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Writer{
		sink:      sink,
		capacity:  cfg.Capacity,
		flushSize: cfg.FlushSize,
		interval:  cfg.Interval,
		entries:   make([]model.RequestLog, 0, cfg.FlushSize),
		flushChan: make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
}

// Add queues one entry. When the queue is full the entry goes to the
// console instead of blocking the request path.
func (w *Writer) Add(entry model.RequestLog) {
	w.mu.Lock()
	if len(w.entries) >= w.capacity {
		w.mu.Unlock()
		log.Printf("Request log buffer full, dropping entry: %s %s %d", entry.Method, entry.Path, entry.Status)
		return
	}
	w.entries = append(w.entries, entry)
	shouldFlush := len(w.entries) >= w.flushSize
	w.mu.Unlock()

	if shouldFlush {
		select {
		case w.flushChan <- struct{}{}:
		default:
		}
	}
}

// Start runs the flush loop until the context is cancelled or Stop is
// called. A final flush runs on the way out.
func (w *Writer) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Flush(context.Background())
			return
		case <-w.stopChan:
			w.Flush(context.Background())
			return
		case <-ticker.C:
			w.Flush(ctx)
		case <-w.flushChan:
			w.Flush(ctx)
		}
	}
}

func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
}

// Flush writes the buffered entries to the sink. On failure the batch is
// dropped to the console; there is no retry or replay.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.entries) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.entries
	w.entries = make([]model.RequestLog, 0, w.flushSize)
	w.mu.Unlock()

	if err := w.sink.WriteBatch(ctx, batch); err != nil {
		log.Printf("Failed to flush %d request log entries: %v", len(batch), err)
		for _, entry := range batch {
			log.Printf("request: %s %s %s status=%d latency=%dms ip=%s user=%d",
				entry.RequestID, entry.Method, entry.Path, entry.Status, entry.LatencyMS, entry.ClientIP, entry.UserID)
		}
	}
}

// Len reports the number of buffered entries.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
