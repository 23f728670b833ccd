package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyperjump/notevec/internal/fileid"
	"github.com/hyperjump/notevec/internal/models"
	"go.uber.org/zap"
)

// debouncer coalesces modify events per document. A newer request for the same
// path supersedes a pending one instead of queuing behind it.
type debouncer struct {
	delay  time.Duration
	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	closed bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

func (d *debouncer) cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
}

func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// close drops pending work and waits for callbacks that already started.
func (d *debouncer) close() {
	d.mu.Lock()
	d.closed = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Run consumes document events until ctx is done or events is closed.
// Modify events are debounced per document. A delete cancels pending work for its path
// and removes the records at once. A rename removes the old path and schedules the new one.
// Updates that arrive during a full rebuild wait for it and then run.
// Errors are logged, never returned: these are background updates.
func (idx *Indexer) Run(ctx context.Context, events <-chan models.DocumentEvent) {
	d := newDebouncer(idx.debounce)
	defer d.close()

	if idx.logger != nil {
		idx.logger.Debug("indexer event loop started", zap.Duration("debounce", idx.debounce))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			idx.handleEvent(ctx, d, ev)
		}
	}
}

func (idx *Indexer) handleEvent(ctx context.Context, d *debouncer, ev models.DocumentEvent) {
	docPath := fileid.Normalize(ev.Path)
	if idx.logger != nil {
		idx.logger.Debug("indexer event", zap.String("op", ev.Op.String()), zap.String("path", docPath), zap.String("old_path", ev.OldPath))
	}
	switch ev.Op {
	case models.EventModify:
		idx.scheduleIndex(ctx, d, docPath)
	case models.EventDelete:
		d.cancel(docPath)
		idx.apply(ctx, d, docPath, idx.RemoveDocument)
	case models.EventRename:
		oldPath := fileid.Normalize(ev.OldPath)
		d.cancel(oldPath)
		idx.apply(ctx, d, oldPath, idx.RemoveDocument)
		idx.scheduleIndex(ctx, d, docPath)
	}
}

func (idx *Indexer) scheduleIndex(ctx context.Context, d *debouncer, docPath string) {
	d.schedule(docPath, func() {
		if ctx.Err() != nil {
			return
		}
		idx.apply(ctx, d, docPath, idx.IndexDocument)
	})
}

// apply runs a background update. While a full rebuild holds the store the update is
// rescheduled under the same path, so a newer event for that path still supersedes it.
func (idx *Indexer) apply(ctx context.Context, d *debouncer, docPath string, op func(context.Context, string) error) {
	err := op(ctx, docPath)
	switch {
	case err == nil:
	case errors.Is(err, ErrIndexingInProgress):
		if idx.logger != nil {
			idx.logger.Debug("indexer deferring update until rebuild finishes", zap.String("path", docPath))
		}
		d.schedule(docPath, func() {
			if ctx.Err() != nil {
				return
			}
			idx.apply(ctx, d, docPath, op)
		})
	case idx.logger != nil:
		idx.logger.Debug("indexer background update failed", zap.String("path", docPath), zap.Error(err))
	}
}
