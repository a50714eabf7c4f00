package usage

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

type NotifyEvent struct {
	Path string
	Op   Op
}

func (e NotifyEvent) Has(op Op) bool { return e.Op&op != 0 }

// Notifier is the filesystem change source used by both watchers. Add may be
// called for any number of directories; Events is closed after Close.
type Notifier interface {
	Add(path string) error
	Events() <-chan NotifyEvent
	Close() error
}

type NotifierFactory func() (Notifier, error)

type tickerFactory func(d time.Duration) (<-chan time.Time, func())

func newTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type fsNotifier struct {
	watcher   *fsnotify.Watcher
	events    chan NotifyEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFSNotifier returns a Notifier backed by fsnotify.
func NewFSNotifier() (Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	n := &fsNotifier{
		watcher: w,
		events:  make(chan NotifyEvent, 64),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.forward()
	return n, nil
}

func (n *fsNotifier) Add(path string) error { return n.watcher.Add(path) }

func (n *fsNotifier) Events() <-chan NotifyEvent { return n.events }

func (n *fsNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		n.wg.Wait()
	})
	return err
}

func (n *fsNotifier) forward() {
	defer n.wg.Done()
	defer close(n.events)
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			select {
			case n.events <- NotifyEvent{Path: ev.Name, Op: translateOp(ev.Op)}:
			case <-n.done:
				return
			}
		case _, ok := <-n.watcher.Errors:
			// Overflow and similar errors are covered by the reconcile sweep.
			if !ok {
				return
			}
		}
	}
}

func translateOp(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	if op.Has(fsnotify.Chmod) {
		out |= OpChmod
	}
	return out
}
