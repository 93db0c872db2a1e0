package rate

import (
	"context"
	"sync"
	"time"

	"deckxlate/pkg/contract"
)

// LimitKey groups rate-limit accounting, usually by provider name.
type LimitKey string

// Limits is one group's configured ceilings. 0 disables a dimension.
type Limits struct {
	RPM             int // requests per minute
	TPM             int // tokens per minute
	MaxTokensPerReq int // per-request token cap (input plus expected output); 0 means no cap
}

// Ask is a single request for permission to proceed.
type Ask struct {
	Key      LimitKey
	Requests int // defaults to 1; must be >= 1
	Tokens   int // estimated tokens for this call (>= 0)
}

// Gate is a concurrency-safe rate limiter.
type Gate interface {
	// Wait blocks until quota is available or ctx is cancelled; fails
	// fast when a single request exceeds the per-request cap.
	Wait(ctx context.Context, a Ask) error
	// Try is a non-blocking attempt; returns false when quota is short.
	Try(a Ask) bool
}

// Snapshoter is an optional diagnostics interface.
type Snapshoter interface {
	Snapshot(key LimitKey) (rpmAvail, tpmAvail int)
}

// NewGate builds a gate from static configuration; clk defaults to
// time.Now when nil.
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	now := clk()
	for k, lim := range m {
		g.m[k] = newEntry(lim, now)
	}
	return g
}

type gate struct {
	clk func() time.Time
	m   map[LimitKey]*entry
}

type entry struct {
	mu  sync.Mutex
	lim Limits
	req bucket // RPM dimension
	tok bucket // TPM dimension
}

type bucket struct {
	cap   int
	level float64
	rate  float64
	last  time.Time
}

func newEntry(lim Limits, now time.Time) *entry {
	e := &entry{lim: lim}
	if lim.RPM > 0 {
		e.req = newBucket(lim.RPM, now)
	}
	if lim.TPM > 0 {
		e.tok = newBucket(lim.TPM, now)
	}
	return e
}

func newBucket(capacity int, now time.Time) bucket {
	if capacity <= 0 {
		return bucket{}
	}
	return bucket{cap: capacity, level: float64(capacity), rate: float64(capacity) / 60.0, last: now}
}

func (b *bucket) enabled() bool { return b.cap > 0 }

func (b *bucket) refill(now time.Time) {
	if !b.enabled() {
		return
	}
	if now.Before(b.last) {
		// Clock went backwards: treat it as no time having passed.
		return
	}
	dt := now.Sub(b.last).Seconds()
	if dt <= 0 {
		return
	}
	b.level += dt * b.rate
	if b.level > float64(b.cap) {
		b.level = float64(b.cap)
	}
	b.last = now
}

func (b *bucket) canTake(n int) bool {
	if !b.enabled() { // this dimension is disabled
		return true
	}
	if n <= 0 { // validated by the caller; be lenient here
		return true
	}
	return b.level >= float64(n)
}

func (b *bucket) take(n int) {
	if !b.enabled() || n <= 0 {
		return
	}
	b.level -= float64(n)
	if b.level < 0 {
		b.level = 0
	}
}

// waitSecFor returns (approximately, rounded down) the seconds still
// needed before n can be taken; the caller takes the max across both
// dimensions and rounds up.
func (b *bucket) waitSecFor(n int) float64 {
	if !b.enabled() || n <= 0 {
		return 0
	}
	deficit := float64(n) - b.level
	if deficit <= 0 {
		return 0
	}
	return deficit / b.rate // rate is tokens/sec
}

func (g *gate) get(key LimitKey) *entry {
	e := g.m[key]
	if e == nil {
		// An unconfigured key is treated as unlimited: both buckets disabled.
		e = newEntry(Limits{}, g.clk())
		g.m[key] = e
	}
	return e
}

func (g *gate) Try(a Ask) bool {
	if a.Requests <= 0 || a.Tokens < 0 {
		return false
	}
	e := g.get(a.Key)
	if e.lim.MaxTokensPerReq > 0 && a.Tokens > e.lim.MaxTokensPerReq {
		return false
	}
	now := g.clk()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.req.refill(now)
	e.tok.refill(now)
	if e.req.canTake(a.Requests) && e.tok.canTake(a.Tokens) {
		e.req.take(a.Requests)
		e.tok.take(a.Tokens)
		return true
	}
	return false
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	if a.Requests <= 0 || a.Tokens < 0 {
		return contract.ErrInvalidInput
	}
	e := g.get(a.Key)
	if e.lim.MaxTokensPerReq > 0 && a.Tokens > e.lim.MaxTokensPerReq {
		return contract.ErrInvalidInput
	}
	// Minimum sleep granularity, to avoid busy-waiting.
	const minSleep = 10 * time.Millisecond
	for {
		// Fast-path cancellation check.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := g.clk()
		e.mu.Lock()
		e.req.refill(now)
		e.tok.refill(now)
		canReq := e.req.canTake(a.Requests)
		canTok := e.tok.canTake(a.Tokens)
		if canReq && canTok {
			e.req.take(a.Requests)
			e.tok.take(a.Tokens)
			e.mu.Unlock()
			return nil
		}
		// Compute the wait in seconds and take the larger of the two dimensions.
		wr := e.req.waitSecFor(a.Requests)
		wt := e.tok.waitSecFor(a.Tokens)
		e.mu.Unlock()

		waitSec := wr
		if wt > waitSec {
			waitSec = wt
		}
		// Round up to roughly a multiple of minSleep.
		d := time.Duration(waitSec*float64(time.Second) + float64(minSleep))
		if d < minSleep {
			d = minSleep
		}
		// Sleep in slices so cancellation is noticed promptly.
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	// Slice long sleeps into steps of at most 200ms so cancellation lands promptly.
	const step = 200 * time.Millisecond
	for d > 0 {
		s := d
		if s > step {
			s = step
		}
		t := time.NewTimer(s)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}
		d -= s
	}
	return nil
}

// Snapshot returns a floor estimate of currently available requests and
// tokens, for diagnostics only.
func (g *gate) Snapshot(key LimitKey) (rpmAvail, tpmAvail int) {
	e := g.get(key)
	now := g.clk()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.req.refill(now)
	e.tok.refill(now)
	if e.req.enabled() {
		if e.req.level < 0 {
			rpmAvail = 0
		} else if e.req.level > float64(e.req.cap) {
			rpmAvail = e.req.cap
		} else {
			rpmAvail = int(e.req.level)
		}
	}
	if e.tok.enabled() {
		if e.tok.level < 0 {
			tpmAvail = 0
		} else if e.tok.level > float64(e.tok.cap) {
			tpmAvail = e.tok.cap
		} else {
			tpmAvail = int(e.tok.level)
		}
	}
	return
}

// Interface assertions.
var _ Gate = (*gate)(nil)
var _ Snapshoter = (*gate)(nil)
