// Package journal keeps a durable record of world chat.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	queueSize     = 1024
	batchSize     = 64
	flushInterval = 500 * time.Millisecond
	writeTimeout  = 5 * time.Second
)

var ErrClosed = errors.New("journal closed")

type Entry struct {
	World string
	From  string
	Text  string
	At    time.Time
}

// Journal accepts entries without blocking the caller.
type Journal interface {
	Record(e Entry)
}

type Nop struct{}

func (Nop) Record(Entry) {}

// Line is the stored form of an Entry.
type Line struct {
	ID    uint      `gorm:"primaryKey"`
	World string    `gorm:"size:32;index:idx_chat_world_at,priority:1"`
	From  string    `gorm:"size:64"`
	Text  string    `gorm:"size:512"`
	At    time.Time `gorm:"index:idx_chat_world_at,priority:2"`
}

func (Line) TableName() string { return "chat_lines" }

// Writer batches entries onto a background goroutine.
type Writer struct {
	log    *zap.Logger
	insert func(ctx context.Context, lines []Line) error
	close  func() error

	mu      sync.Mutex
	queue   chan Entry
	closed  bool
	dropped int
	done    chan struct{}
}

func newWriter(log *zap.Logger, insert func(context.Context, []Line) error, closeFn func() error) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Writer{
		log:    log.Named("journal"),
		insert: insert,
		close:  closeFn,
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Postgres stores chat in the database at dsn. The table is created if
// needed.
type Postgres struct {
	*Writer
	db *gorm.DB
}

func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&Line{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	insert := func(ctx context.Context, lines []Line) error {
		return db.WithContext(ctx).CreateInBatches(lines, batchSize).Error
	}
	return &Postgres{Writer: newWriter(log, insert, sqlDB.Close), db: db}, nil
}

// Recent returns up to n lines of a world's chat, oldest first.
func (p *Postgres) Recent(ctx context.Context, world string, n int) ([]Entry, error) {
	var lines []Line
	err := p.db.WithContext(ctx).
		Where("world = ?", world).
		Order("at DESC").Order("id DESC").
		Limit(n).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(lines))
	for i, l := range lines {
		out[len(lines)-1-i] = Entry{World: l.World, From: l.From, Text: l.Text, At: l.At}
	}
	return out, nil
}

// Record queues e. Entries are dropped when the queue is full or the writer
// is closed.
func (w *Writer) Record(e Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case w.queue <- e:
	default:
		w.dropped++
		if w.dropped == 1 || w.dropped%100 == 0 {
			w.log.Warn("journal queue full, dropping entries", zap.Int("dropped", w.dropped))
		}
	}
}

// Dropped reports how many entries were lost to a full queue.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Writer) loop() {
	defer close(w.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Line, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.insert(ctx, batch); err != nil {
			w.log.Error("write chat lines", zap.Int("lines", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, Line{World: e.World, From: e.From, Text: e.Text, At: e.At.UTC()})
			if len(batch) == batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes queued entries and releases the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
	if w.close != nil {
		return w.close()
	}
	return nil
}
