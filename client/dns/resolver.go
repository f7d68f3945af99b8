package dns

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("resolver is closed")

// Query is a pending resolution. It's completed exactly once.
type Query struct {
	host string
	done chan struct{}
	// aborted is closed once the resolver is, so a query that never reached a worker
	// doesn't hang its waiters.
	aborted <-chan struct{}
	ips     []net.IP
	err     error
}

func newQuery(host string, aborted <-chan struct{}) *Query {
	return &Query{
		host:    host,
		done:    make(chan struct{}),
		aborted: aborted,
	}
}

func (q *Query) complete(ips []net.IP, err error) *Query {
	q.ips, q.err = ips, err
	close(q.done)
	return q
}

// Host returns the hostname being resolved.
func (q *Query) Host() string {
	return q.host
}

// Wait blocks until either the query is completed or the context is done.
func (q *Query) Wait(ctx context.Context) ([]net.IP, error) {
	select {
	case <-q.done:
		return q.ips, q.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.aborted:
		select {
		case <-q.done:
			return q.ips, q.err
		default:
			return nil, ErrClosed
		}
	}
}

// Resolver runs lookups on a fixed pool of workers. It must be closed when it isn't
// needed anymore.
type Resolver struct {
	lookuper Lookuper
	queries  chan *Query
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New starts the workers. A nil lookuper stands for net.DefaultResolver.
func New(workers int, lookuper Lookuper) *Resolver {
	if lookuper == nil {
		lookuper = NewNetLookuper(nil)
	}

	workers = max(workers, 1)
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		lookuper: lookuper,
		queries:  make(chan *Query, workers),
		ctx:      ctx,
		cancel:   cancel,
	}

	r.wg.Add(workers)
	for range workers {
		go r.worker()
	}

	return r
}

func (r *Resolver) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case q := <-r.queries:
			ips, err := r.lookuper.LookupIP(r.ctx, q.host)
			if err == nil && len(ips) == 0 {
				err = ErrDomainNotFound
			}

			q.complete(ips, errors.Wrapf(err, "lookup for host(%s) failed", q.host))
		}
	}
}

// Resolve enqueues the hostname and returns right away. IP literals are completed
// immediately. A query the pool can't take yet is handed over in the background, so
// a busy pool never blocks the caller; the ctx bounds how long the hand-over may take.
func (r *Resolver) Resolve(ctx context.Context, host string) *Query {
	q := newQuery(host, r.ctx.Done())
	if ip := net.ParseIP(host); ip != nil {
		return q.complete([]net.IP{ip}, nil)
	}

	if r.ctx.Err() != nil {
		return q.complete(nil, ErrClosed)
	}

	select {
	case r.queries <- q:
	default:
		go r.enqueue(ctx, q)
	}

	return q
}

func (r *Resolver) enqueue(ctx context.Context, q *Query) {
	select {
	case r.queries <- q:
	case <-ctx.Done():
		q.complete(nil, ctx.Err())
	case <-r.ctx.Done():
		q.complete(nil, ErrClosed)
	}
}

// Close aborts the lookups in flight and waits for the workers to exit. Queries that
// didn't reach a worker are reported as ErrClosed to their waiters.
func (r *Resolver) Close() {
	r.cancel()
	r.wg.Wait()
}
