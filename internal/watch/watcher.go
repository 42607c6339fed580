package watch

import (
	"context"
	"sync"
	"time"

	"github.com/ojinta/portfolio/go-services/pkg/logger"
)

const (
	DefaultPollInterval = time.Minute
	DefaultTickInterval = time.Second
	DefaultThreshold    = 10 * time.Minute

	logoutTimeout = 5 * time.Second
)

type State int

const (
	Idle State = iota
	Warning
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Warning:
		return "warning"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// LogoutReason says why the watcher ended the session.
type LogoutReason string

const (
	ReasonExpired LogoutReason = "expired"
	ReasonManual  LogoutReason = "manual"
)

// Session is what the watcher needs from the server. *Client implements it.
type Session interface {
	WhoAmI(ctx context.Context) (Status, error)
	Logout(ctx context.Context) error
}

// Notifier receives state changes. Calls come from the Run goroutine.
type Notifier interface {
	OnWarning(remaining time.Duration)
	OnTick(remaining time.Duration)
	OnIdle()
	OnLoggedOut(reason LogoutReason)
}

type Option func(*Watcher)

func WithPollInterval(d time.Duration) Option { return func(w *Watcher) { w.pollEvery = d } }
func WithTickInterval(d time.Duration) Option { return func(w *Watcher) { w.tickEvery = d } }
func WithThreshold(d time.Duration) Option { return func(w *Watcher) { w.threshold = d } }

type pollResult struct {
	seq    uint64
	status Status
	err    error
}

// Watcher polls whoami on a fixed interval and, once the session is inside
// the warning threshold, counts down locally between polls. The countdown
// is an approximation; the server gate stays authoritative.
//
// There is a single remaining-time value. A poll result replaces it and
// restarts the tick phase, so two countdowns never run at once.
type Watcher struct {
	session   Session
	notify    Notifier
	pollEvery time.Duration
	tickEvery time.Duration
	threshold time.Duration
	manual    chan struct{}

	mu        sync.Mutex
	state     State
	remaining time.Duration
	applied   uint64
}

func New(session Session, notify Notifier, opts ...Option) *Watcher {
	w := &Watcher{
		session:   session,
		notify:    notify,
		pollEvery: DefaultPollInterval,
		tickEvery: DefaultTickInterval,
		threshold: DefaultThreshold,
		manual:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Remaining is the local countdown value.
func (w *Watcher) Remaining() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remaining
}

// LogoutNow requests a manual logout. Safe from any goroutine; extra calls are ignored.
func (w *Watcher) LogoutNow() {
	select {
	case w.manual <- struct{}{}:
	default:
	}
}

// Observe applies one whoami answer and returns the resulting state.
// A denied session changes nothing: the gate redirects on next navigation.
func (w *Watcher) Observe(st Status) State {
	w.mu.Lock()
	if w.state == LoggedOut || !st.Valid {
		s := w.state
		w.mu.Unlock()
		return s
	}
	prev := w.state
	w.remaining = st.Remaining
	if st.Remaining <= w.threshold {
		w.state = Warning
	} else {
		w.state = Idle
	}
	s, rem := w.state, w.remaining
	w.mu.Unlock()

	switch {
	case s == Warning:
		w.notify.OnWarning(rem)
	case prev == Warning:
		w.notify.OnIdle()
	}
	return s
}

// Tick advances the countdown by one tick interval while in Warning and
// reports whether it reached zero.
func (w *Watcher) Tick() bool {
	w.mu.Lock()
	if w.state != Warning {
		w.mu.Unlock()
		return false
	}
	w.remaining -= w.tickEvery
	if w.remaining < 0 {
		w.remaining = 0
	}
	rem := w.remaining
	w.mu.Unlock()

	w.notify.OnTick(rem)
	return rem == 0
}

// accept drops results older than the last applied poll.
func (w *Watcher) accept(r pollResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r.seq <= w.applied {
		return false
	}
	w.applied = r.seq
	return true
}

// Run polls immediately and then every poll interval until the session is
// logged out or ctx is done. Each poll runs in its own goroutine so a hung
// request never delays the next one. Results that arrive after Run
// returned are discarded.
func (w *Watcher) Run(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	results := make(chan pollResult)

	var seq uint64
	poll := func() {
		seq++
		n := seq
		go func() {
			st, err := w.session.WhoAmI(pollCtx)
			select {
			case results <- pollResult{seq: n, status: st, err: err}:
			case <-done:
			}
		}()
	}

	pollT := time.NewTicker(w.pollEvery)
	defer pollT.Stop()
	tickT := time.NewTicker(w.tickEvery)
	defer tickT.Stop()

	poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollT.C:
			poll()
		case r := <-results:
			if !w.accept(r) {
				continue
			}
			if r.err != nil {
				logger.Warnf("session watch: whoami failed: %v", r.err)
				continue
			}
			w.Observe(r.status)
			tickT.Reset(w.tickEvery)
		case <-tickT.C:
			if w.Tick() {
				w.logout(ReasonExpired)
				return nil
			}
		case <-w.manual:
			w.logout(ReasonManual)
			return nil
		}
	}
}

// logout calls the server, then clears local state whatever the outcome.
func (w *Watcher) logout(reason LogoutReason) {
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()
	if err := w.session.Logout(ctx); err != nil {
		logger.Warnf("session watch: logout request failed: %v", err)
	}
	w.mu.Lock()
	w.state = LoggedOut
	w.remaining = 0
	w.mu.Unlock()
	logger.Infow("session watch: logged out", "reason", string(reason))
	w.notify.OnLoggedOut(reason)
}
