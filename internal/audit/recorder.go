package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink persists entries. Implementations must assign the identifier.
type Sink interface {
	Insert(ctx context.Context, entry Entry) (int64, error)
}

// DropCounter counts entries lost under backpressure.
type DropCounter interface {
	Inc()
}

// Recorder appends audit entries without ever blocking or failing the
// business operation that triggered them. Entries are buffered and written
// by a background goroutine; when the buffer is full the entry is dropped
// with a local warning.
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	entries chan Entry
	done    chan struct{}
	drops   DropCounter
}

// NewRecorder starts the background writer. A nil drops counter is allowed.
func NewRecorder(sink Sink, logger *slog.Logger, buffer int, drops DropCounter) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
		drops:   drops,
	}
	go r.run()
	return r
}

// Record enqueues an entry. It always returns; persistence failures are
// logged locally and never surfaced to the caller.
func (r *Recorder) Record(actorName, module, action, details string, outcome Outcome) {
	entry := Entry{
		At:        time.Now().UTC(),
		ActorName: actorName,
		Module:    module,
		Action:    action,
		Details:   details,
		Outcome:   outcome,
	}
	select {
	case r.entries <- entry:
	default:
		if r.drops != nil {
			r.drops.Inc()
		}
		if r.logger != nil {
			r.logger.Warn("audit buffer full, entry dropped",
				slog.String("actor", actorName),
				slog.String("module", module),
				slog.String("action", action))
		}
	}
}

// Stop drains buffered entries and stops the writer. Pending writes are
// abandoned when the context expires first.
func (r *Recorder) Stop(ctx context.Context) {
	close(r.entries)
	select {
	case <-r.done:
	case <-ctx.Done():
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := r.sink.Insert(ctx, entry); err != nil {
			if r.drops != nil {
				r.drops.Inc()
			}
			if r.logger != nil {
				r.logger.Warn("audit write failed",
					slog.String("module", entry.Module),
					slog.String("action", entry.Action),
					slog.Any("error", err))
			}
		}
		cancel()
	}
}
