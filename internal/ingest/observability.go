package ingest

import (
	"context"

	"github.com/project-atrium/warder/internal/registry"
)

// IngestObserver creates batch-scoped observability probes for ingestion
type IngestObserver interface {
	// BatchStarted creates a new probe scoped to one batch of messages
	BatchStarted(ctx context.Context, size int) (context.Context, IngestProbe)
}

// IngestProbe provides batch-scoped observability for one ingestion batch.
// Implementations must be safe for concurrent use; messages of a batch may be
// processed in parallel.
type IngestProbe interface {
	// MessageIngested is called when a message produced a registry upsert
	MessageIngested(messageID string, record *registry.Record)

	// MessageFailed is called when a message could not be processed and will
	// be reported back for redelivery
	MessageFailed(messageID string, err error)

	// End terminates the observation. Should be deferred to ensure cleanup.
	End()
}

// NoOpIngestProbe is an exported null object implementation of IngestProbe
type NoOpIngestProbe struct{}

func (n *NoOpIngestProbe) MessageIngested(messageID string, record *registry.Record) {}
func (n *NoOpIngestProbe) MessageFailed(messageID string, err error)                 {}
func (n *NoOpIngestProbe) End()                                                      {}

// NoOpIngestObserver implements IngestObserver with no-op behavior
type NoOpIngestObserver struct{}

func (n *NoOpIngestObserver) BatchStarted(ctx context.Context, size int) (context.Context, IngestProbe) {
	return ctx, &NoOpIngestProbe{}
}
