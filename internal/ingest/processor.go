package ingest

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/project-atrium/warder/internal/registry"
)

// defaultConcurrency bounds how many messages of one batch are processed at
// once when the config does not say otherwise
const defaultConcurrency = 4

// Upserter is the write side of the trust registry
type Upserter interface {
	Upsert(ctx context.Context, url string, organizationID uuid.UUID) (*registry.Record, error)
}

// Processor turns batches of organization-change messages into registry
// upserts with per-message failure isolation
type Processor struct {
	registry    Upserter
	concurrency int
	observer    IngestObserver
}

// ProcessorConfig configures a Processor
type ProcessorConfig struct {
	// Registry receives the upserts (required)
	Registry Upserter

	// Concurrency bounds parallel message processing within a batch.
	// Defaults to 4.
	Concurrency int

	// Observer creates batch-scoped probes. If nil, uses a no-op observer.
	Observer IngestObserver
}

// NewProcessor creates a batch processor
func NewProcessor(cfg ProcessorConfig) *Processor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	observer := cfg.Observer
	if observer == nil {
		observer = &NoOpIngestObserver{}
	}
	return &Processor{
		registry:    cfg.Registry,
		concurrency: concurrency,
		observer:    observer,
	}
}

// ProcessBatch processes every message of the batch and returns the ids of
// the messages that failed, in input order.
//
// Failures are independent: a malformed message or a failed upsert marks only
// its own id, and every other message still runs to completion. The batch as
// a whole never errors; an empty return means every message succeeded and may
// be deleted from the queue.
func (p *Processor) ProcessBatch(ctx context.Context, messages []Message) []string {
	ctx, probe := p.observer.BatchStarted(ctx, len(messages))
	defer probe.End()

	failures := make([]bool, len(messages))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for i, message := range messages {
		group.Go(func() error {
			if err := p.processMessage(groupCtx, message, probe); err != nil {
				failures[i] = true
			}
			// Errors are recorded per message, never returned: returning one
			// would cancel the siblings.
			return nil
		})
	}
	group.Wait()

	var failed []string
	for i, message := range messages {
		if failures[i] {
			failed = append(failed, message.ID)
		}
	}
	return failed
}

func (p *Processor) processMessage(ctx context.Context, message Message, probe IngestProbe) error {
	change, err := ParseMessage(message.Body)
	if err != nil {
		probe.MessageFailed(message.ID, err)
		return err
	}

	url := DeriveIssuerURL(change.IdentityPoolID, change.AWSPrimaryRegion)
	record, err := p.registry.Upsert(ctx, url, change.OrganizationID)
	if err != nil {
		probe.MessageFailed(message.ID, err)
		return err
	}

	probe.MessageIngested(message.ID, record)
	return nil
}
