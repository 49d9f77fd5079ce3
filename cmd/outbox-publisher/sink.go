package main

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/storefront-labs/storefront-backend/pkg/outbox/registry"
)

type publisherSource interface {
	Ping(context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

// pubsubSink keeps one batching publisher per topic for the life of the process.
type pubsubSink struct {
	source publisherSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubSink(source publisherSource) *pubsubSink {
	return &pubsubSink{source: source, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

func (s *pubsubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := s.publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func (s *pubsubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.source.Publisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// Stop flushes pending messages on every publisher.
func (s *pubsubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}
