package publishers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubPublisher struct {
	id    string
	typ   string
	err   error
	calls int
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "ok", typ: "http"},
		&stubPublisher{id: "bad", typ: "http", err: errors.New("failed")},
	})

	count, err := fanout.Publish(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("expected 1 publisher, got %d", len(pubs))
	}
}

type closingPublisher struct {
	stubPublisher
	closed bool
}

func (c *closingPublisher) Close() error {
	c.closed = true
	return nil
}

func TestFanoutCloseReleasesClosers(t *testing.T) {
	closer := &closingPublisher{stubPublisher: stubPublisher{id: "ps", typ: TypePubSub}}
	fanout := NewFanout([]Publisher{closer, nil, &stubPublisher{id: "h", typ: TypeHTTP}})
	if fanout.Size() != 2 {
		t.Fatalf("nil publishers must be dropped, size %d", fanout.Size())
	}
	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closer.closed {
		t.Fatalf("closer was not closed")
	}
}

func TestIgnoreMalformedThroughFanout(t *testing.T) {
	malformed := fmt.Errorf("%w: bad json", ErrMalformedResponse)
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "slack", typ: TypeSlack, err: errors.Join(malformed, malformed)},
		&stubPublisher{id: "ok", typ: TypeHTTP},
	})

	_, err := fanout.Publish(context.Background(), Event{})
	if err == nil {
		t.Fatalf("expected the malformed reply to surface from Publish")
	}
	if got := IgnoreMalformed(err); got != nil {
		t.Fatalf("IgnoreMalformed = %v", got)
	}

	fatal := errors.New("channel_not_found")
	fanout = NewFanout([]Publisher{
		&stubPublisher{id: "slack", typ: TypeSlack, err: malformed},
		&stubPublisher{id: "hook", typ: TypeHTTP, err: fatal},
	})
	_, err = fanout.Publish(context.Background(), Event{})
	got := IgnoreMalformed(err)
	if !errors.Is(got, fatal) {
		t.Fatalf("fatal error lost: %v", got)
	}
	if errors.Is(got, ErrMalformedResponse) {
		t.Fatalf("malformed error kept: %v", got)
	}
}
