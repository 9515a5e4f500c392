// Copyright (C) 2025 KaleiDev
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package watch reports settled changes to a single file.
//
// The file's parent directory is watched rather than the file itself, so
// editors that save by writing a temp file and renaming it over the target
// are still observed. Bursts of events are coalesced by a debounce window
// and the handler sees only the last change of each burst.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/KaleiDev/safe-backup-CYB225/pkg/logging"
	"github.com/KaleiDev/safe-backup-CYB225/pkg/safepath"
)

// Op is the kind of change observed.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// String returns the lowercase name of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	case OpChmod:
		return "chmod"
	default:
		return "unknown"
	}
}

// Gone reports whether the change left the path without a file.
func (op Op) Gone() bool {
	return op == OpRemove || op == OpRename
}

// Change is one settled change to the watched file.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler is called once per settled burst of changes.
type Handler func(ctx context.Context, change Change)

// Options configures a FileWatcher.
type Options struct {
	// Debounce is how long the file must stay quiet before the handler runs.
	// Default: 500ms
	Debounce time.Duration

	// MinInterval is the minimum time between two handler calls. Zero
	// disables the limit.
	MinInterval time.Duration

	// BufferSize is the capacity of the internal event channel.
	// Default: 64
	BufferSize int

	// Logger receives watcher errors. Default: discard.
	Logger *logging.Logger
}

// DefaultOptions returns the defaults used when New is given nil.
func DefaultOptions() Options {
	return Options{
		Debounce:   500 * time.Millisecond,
		BufferSize: 64,
	}
}

// FileWatcher watches one file.
//
// # Thread Safety
//
// Run must be called at most once. Stop may be called from any goroutine.
// The handler always runs on the goroutine that called Run, so handler
// calls never overlap.
type FileWatcher struct {
	target   string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *logging.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for target. The target's parent directory must
// exist; the target itself may not exist yet.
//
// # Example
//
//	w, err := watch.New("notes.txt", func(ctx context.Context, c watch.Change) {
//	    svc.Backup(ctx, c.Path)
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
func New(target string, handler Handler, opts *Options) (*FileWatcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	o := DefaultOptions()
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if opts.BufferSize > 0 {
			o.BufferSize = opts.BufferSize
		}
		o.MinInterval = opts.MinInterval
		o.Logger = opts.Logger
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}

	abs, err := safepath.Absolutize(target)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &FileWatcher{
		target:   abs,
		watcher:  fw,
		handler:  handler,
		debounce: o.Debounce,
		logger:   o.Logger,
		changes:  make(chan Change, o.BufferSize),
		done:     make(chan struct{}),
	}
	if o.MinInterval > 0 {
		w.limiter = rate.NewLimiter(rate.Every(o.MinInterval), 1)
	}
	return w, nil
}

// Target returns the absolute path being watched.
func (w *FileWatcher) Target() string {
	return w.target
}

// Run delivers settled changes to the handler until ctx is canceled or Stop
// is called. A pending burst is flushed before Run returns after Stop.
//
// # Outputs
//
//   - error: nil after Stop, ctx.Err() after cancellation
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.Stop()
	go w.processEvents(ctx)

	var (
		pending *Change
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	flush := func() {
		if pending == nil {
			return
		}
		change := *pending
		pending = nil
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
		}
		w.handler(ctx, change)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			flush()
			return nil
		case change := <-w.changes:
			pending = &change
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

// Stop ends watching and releases the fsnotify handle.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

// processEvents forwards events for the target to the debounce loop.
func (w *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			select {
			case w.changes <- Change{Path: w.target, Op: convertOp(event.Op), Time: time.Now()}:
			default:
				// Buffer full; a burst is already pending.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "path", w.target, "error", err.Error())
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Chmod):
		return OpChmod
	default:
		return OpWrite
	}
}
