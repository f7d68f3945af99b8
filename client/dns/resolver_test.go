package dns

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type blockingLookuper struct {
	started chan struct{}
}

func (b blockingLookuper) LookupIP(ctx context.Context, _ string) ([]net.IP, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

type ResolverTestSuite struct {
	suite.Suite

	resolver *Resolver
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (s *ResolverTestSuite) SetupTest() {
	s.resolver = New(2, NewMapLookuper(map[string][]net.IP{
		"localhost":   {net.IPv4(127, 0, 0, 1)},
		"example.com": {net.IPv4(1, 1, 1, 1), net.IPv4(1, 0, 0, 1)},
	}))
}

func (s *ResolverTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.resolver.Close()
}

func (s *ResolverTestSuite) wait(q *Query) ([]net.IP, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return q.Wait(ctx)
}

func (s *ResolverTestSuite) TestResolve() {
	ips, err := s.wait(s.resolver.Resolve(context.Background(), "localhost"))
	s.Require().NoError(err)
	s.Require().Len(ips, 1)
	s.True(ips[0].Equal(net.IPv4(127, 0, 0, 1)))

	ips, err = s.wait(s.resolver.Resolve(context.Background(), "example.com"))
	s.Require().NoError(err)
	s.Len(ips, 2)
}

func (s *ResolverTestSuite) TestNotFound() {
	_, err := s.wait(s.resolver.Resolve(context.Background(), "non-existent.com"))
	s.ErrorIs(err, ErrDomainNotFound)
}

func (s *ResolverTestSuite) TestLiteral() {
	ips, err := s.wait(s.resolver.Resolve(context.Background(), "::1"))
	s.Require().NoError(err)
	s.True(ips[0].Equal(net.IPv6loopback))
}

func (s *ResolverTestSuite) TestConcurrent() {
	var wg sync.WaitGroup
	defer wg.Wait()

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.wait(s.resolver.Resolve(context.Background(), "localhost"))
			s.NoError(err)
		}()
	}
}

func (s *ResolverTestSuite) TestClosed() {
	s.resolver.Close()
	_, err := s.wait(s.resolver.Resolve(context.Background(), "localhost"))
	s.ErrorIs(err, ErrClosed)
}

func (s *ResolverTestSuite) TestCloseAbortsLookups() {
	lookuper := blockingLookuper{started: make(chan struct{}, 1)}
	resolver := New(1, lookuper)
	q := resolver.Resolve(context.Background(), "slow.example")
	<-lookuper.started

	resolver.Close()
	_, err := s.wait(q)
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverTestSuite) TestWaitContext() {
	lookuper := blockingLookuper{started: make(chan struct{}, 1)}
	resolver := New(1, lookuper)
	defer resolver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Resolve(context.Background(), "slow.example").Wait(ctx)
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverTestSuite) TestBusyPool() {
	lookuper := blockingLookuper{started: make(chan struct{}, 4)}
	resolver := New(1, lookuper)
	defer resolver.Close()

	resolver.Resolve(context.Background(), "first.example")
	<-lookuper.started
	// takes the only slot of the queue
	resolver.Resolve(context.Background(), "second.example")

	ctx, cancel := context.WithCancel(context.Background())
	resolved := make(chan *Query, 1)
	go func() {
		resolved <- resolver.Resolve(ctx, "third.example")
	}()

	var q *Query
	select {
	case q = <-resolved:
	case <-time.After(time.Second):
		s.FailNow("Resolve blocked while the pool was busy")
	}

	s.Equal("third.example", q.Host())
	cancel()
	_, err := s.wait(q)
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverTestSuite) TestCloseWithQueuedQueries() {
	lookuper := blockingLookuper{started: make(chan struct{}, 4)}
	resolver := New(1, lookuper)

	resolver.Resolve(context.Background(), "first.example")
	<-lookuper.started
	queued := resolver.Resolve(context.Background(), "second.example")
	pending := resolver.Resolve(context.Background(), "third.example")

	resolver.Close()
	for _, q := range []*Query{queued, pending} {
		_, err := s.wait(q)
		s.Error(err)
	}
}
