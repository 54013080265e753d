package watch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeusync/stagehand/internal/core/observability/log"
)

// Notifier gives its owner publish/subscribe semantics with two delivery
// modes. Immediate handlers run inside Notify in registration order. Deferred
// handlers run when the owning Queue is drained and see at most one payload
// per event type (the latest) per flush.
//
// Handlers are invoked without any lock held, so they may notify, watch and
// unwatch freely.
type Notifier struct {
	mu       sync.Mutex
	queue    *Queue
	log      log.Log
	seq      uint64
	wildcard []*watcher
	specific map[string][]*watcher

	pending   map[string]any
	order     []string
	scheduled bool
}

// New creates a Notifier flushing through queue. A nil logger discards
// handler failures.
func New(queue *Queue, logger log.Log) *Notifier {
	if queue == nil {
		panic("watch: nil queue")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Notifier{
		queue:    queue,
		log:      logger,
		specific: make(map[string][]*watcher),
		pending:  make(map[string]any),
	}
}

type watcher struct {
	id       string
	typ      string
	seq      uint64
	deferred bool
	once     bool
	ctx      context.Context
	handler  Handler
	batch    BatchHandler
	active   atomic.Bool
	stop     func() bool
	owner    *Notifier
}

func (w *watcher) ID() string     { return w.id }
func (w *watcher) Type() string   { return w.typ }
func (w *watcher) IsActive() bool { return w.live() }
func (w *watcher) Cancel()        { w.owner.remove(w) }

func (w *watcher) live() bool {
	if !w.active.Load() {
		return false
	}
	return w.ctx == nil || w.ctx.Err() == nil
}

// Notify records an event. Immediate watchers of typ (wildcard or specific)
// run before Notify returns; the payload is also queued for the next flush,
// replacing any payload already queued for typ.
func (n *Notifier) Notify(typ string, data any) {
	n.mu.Lock()
	immediate := mergeBySeq(filter(n.wildcard, false), filter(n.specific[typ], false))
	if _, queued := n.pending[typ]; !queued {
		n.order = append(n.order, typ)
	}
	n.pending[typ] = data
	schedule := !n.scheduled
	n.scheduled = true
	n.mu.Unlock()

	if schedule {
		n.queue.Schedule(n.flush)
	}

	ev := Event{Type: typ, Data: data}
	for _, w := range immediate {
		n.deliver(w, ev)
	}
}

// Watch registers fn as an immediate wildcard handler.
func (n *Notifier) Watch(fn Handler) Subscription {
	return n.add(&watcher{handler: fn})
}

// WatchBatch registers fn as a deferred wildcard handler receiving the whole
// coalesced batch once per flush.
func (n *Notifier) WatchBatch(opts Options, fn BatchHandler) Subscription {
	return n.add(&watcher{deferred: true, once: opts.Once, ctx: opts.Ctx, batch: fn})
}

// WatchWith registers fn as a wildcard handler with extra controls. With
// opts.Deferred it is called once per coalesced event type at flush time.
func (n *Notifier) WatchWith(opts Options, fn Handler) Subscription {
	return n.add(&watcher{deferred: opts.Deferred, once: opts.Once, ctx: opts.Ctx, handler: fn})
}

// WatchType registers fn for a single event type, immediate unless
// opts.Deferred is set.
func (n *Notifier) WatchType(typ string, opts Options, fn Handler) Subscription {
	return n.add(&watcher{typ: typ, deferred: opts.Deferred, once: opts.Once, ctx: opts.Ctx, handler: fn})
}

// Unwatch removes a registration. Unknown, foreign or nil subscriptions are
// ignored.
func (n *Notifier) Unwatch(sub Subscription) {
	w, ok := sub.(*watcher)
	if !ok || w == nil || w.owner != n {
		return
	}
	n.remove(w)
}

// WaitFor resolves with the next immediate delivery of typ. If ctx is
// cancelled first the result carries an error wrapping ErrAborted.
func (n *Notifier) WaitFor(ctx context.Context, typ string) <-chan Result {
	out := make(chan Result, 1)
	var once sync.Once
	resolve := func(r Result) {
		once.Do(func() { out <- r })
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		resolve(Result{Err: abortError(ctx)})
		return out
	}

	var (
		mu      sync.Mutex
		stop    func() bool
		settled bool
	)
	sub := n.WatchType(typ, Options{Once: true}, func(e Event) error {
		resolve(Result{Data: e.Data})
		mu.Lock()
		defer mu.Unlock()
		settled = true
		if stop != nil {
			stop()
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	if !settled {
		stop = context.AfterFunc(ctx, func() {
			sub.Cancel()
			resolve(Result{Err: abortError(ctx)})
		})
	}
	return out
}

// IsWatched reports whether any live handler would receive typ.
func (n *Notifier) IsWatched(typ string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, w := range n.wildcard {
		if w.live() {
			return true
		}
	}
	for _, w := range n.specific[typ] {
		if w.live() {
			return true
		}
	}
	return false
}

// IsQueued reports whether an event of typ is waiting for the next flush.
func (n *Notifier) IsQueued(typ string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.pending[typ]
	return ok
}

func (n *Notifier) add(w *watcher) Subscription {
	w.id = uuid.NewString()
	w.owner = n
	w.active.Store(true)

	n.mu.Lock()
	n.seq++
	w.seq = n.seq
	if w.typ == "" {
		n.wildcard = appendCopy(n.wildcard, w)
	} else {
		n.specific[w.typ] = appendCopy(n.specific[w.typ], w)
	}
	n.mu.Unlock()

	if w.ctx != nil {
		w.stop = context.AfterFunc(w.ctx, func() { n.remove(w) })
	}
	return w
}

func (n *Notifier) remove(w *watcher) {
	if !w.active.Swap(false) {
		return
	}
	if w.stop != nil {
		w.stop()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if w.typ == "" {
		n.wildcard = without(n.wildcard, w)
		return
	}
	rest := without(n.specific[w.typ], w)
	if len(rest) == 0 {
		delete(n.specific, w.typ)
		return
	}
	n.specific[w.typ] = rest
}

func (n *Notifier) flush() {
	n.mu.Lock()
	batch := make(Batch, len(n.pending))
	order := n.order
	for typ, data := range n.pending {
		batch[typ] = data
	}
	n.pending = make(map[string]any, len(batch))
	n.order = nil
	n.scheduled = false

	deferred := filter(n.wildcard, true)
	for _, typ := range order {
		deferred = append(deferred, filter(n.specific[typ], true)...)
	}
	n.mu.Unlock()

	sort.SliceStable(deferred, func(i, j int) bool { return deferred[i].seq < deferred[j].seq })

	for _, w := range deferred {
		switch {
		case w.batch != nil:
			n.deliverBatch(w, batch)
		case w.typ != "":
			n.deliver(w, Event{Type: w.typ, Data: batch[w.typ]})
		default:
			for _, typ := range order {
				if !w.live() {
					break
				}
				n.deliver(w, Event{Type: typ, Data: batch[typ]})
			}
		}
	}
}

func (n *Notifier) deliver(w *watcher, ev Event) {
	if !w.live() {
		return
	}
	if w.once {
		n.remove(w)
	}
	defer n.catch(w, ev.Type)
	if err := w.handler(ev); err != nil {
		n.report(&HandlerError{Event: ev.Type, Watcher: w.id, Err: err})
	}
}

func (n *Notifier) deliverBatch(w *watcher, batch Batch) {
	if !w.live() {
		return
	}
	if w.once {
		n.remove(w)
	}
	defer n.catch(w, "*")
	view := make(Batch, len(batch))
	for k, v := range batch {
		view[k] = v
	}
	if err := w.batch(view); err != nil {
		n.report(&HandlerError{Event: "*", Watcher: w.id, Err: err})
	}
}

func (n *Notifier) catch(w *watcher, typ string) {
	if r := recover(); r != nil {
		n.report(&HandlerError{Event: typ, Watcher: w.id, Panic: r})
	}
}

func (n *Notifier) report(err *HandlerError) {
	n.log.Error("watch handler failed",
		log.String("event", err.Event),
		log.String("watcher", err.Watcher),
		log.Error(err),
	)
}

// filter returns the live watchers with the given delivery mode.
func filter(ws []*watcher, deferred bool) []*watcher {
	out := make([]*watcher, 0, len(ws))
	for _, w := range ws {
		if w.deferred == deferred && w.live() {
			out = append(out, w)
		}
	}
	return out
}

// mergeBySeq merges two seq-ordered lists into registration order.
func mergeBySeq(a, b []*watcher) []*watcher {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := make([]*watcher, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].seq < b[j].seq {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// appendCopy never mutates a slice a concurrent dispatch may still hold.
func appendCopy(ws []*watcher, w *watcher) []*watcher {
	out := make([]*watcher, len(ws), len(ws)+1)
	copy(out, ws)
	return append(out, w)
}

func without(ws []*watcher, w *watcher) []*watcher {
	out := make([]*watcher, 0, len(ws))
	for _, x := range ws {
		if x != w {
			out = append(out, x)
		}
	}
	return out
}
