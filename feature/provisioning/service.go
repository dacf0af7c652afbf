package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"provisioner/core/changelog"
	"provisioner/core/protocol"
	"provisioner/core/provision"
	"provisioner/core/reconcile"
	"provisioner/feature/source"

	"go.uber.org/zap"
)

var (
	// ErrNoConsumer is returned by change log operations when no consumer is configured.
	ErrNoConsumer = errors.New("change consumer is not configured")
	// ErrConsumerBusy is returned when another run holds the consumer.
	ErrConsumerBusy = errors.New("change consumer is already running")
)

// Service executes protocol requests against the engine.
type Service struct {
	engine   *reconcile.Engine
	consumer *changelog.Consumer
	rootBase string
	logger   *zap.Logger

	// run serializes consumer runs; one checkpoint allows one writer.
	run sync.Mutex
}

// NewService creates a provisioning service. consumer may be nil. A non-empty
// rootBase confines bulk runs to source entities at or below it.
//
// Every bulk run of a service with a root base is filtered, so orphan deletion
// never runs there.
func NewService(engine *reconcile.Engine, consumer *changelog.Consumer, rootBase string, logger *zap.Logger) *Service {
	if rootBase != "" && engine.Options().DeleteOrphans {
		logger.Warn("Orphan deletion is disabled by the root base", zap.String("root_base", rootBase))
	}
	return &Service{engine: engine, consumer: consumer, rootBase: rootBase, logger: logger}
}

// Execute runs one normalized request and returns its response message.
// Per-object failures are part of the response; the error reports failures
// that prevented a response, such as an unreadable source.
func (s *Service) Execute(ctx context.Context, req *protocol.Request) (any, error) {
	if req.Kind.Bulk() {
		filter, err := s.scope(*req.Filter)
		if err != nil {
			return nil, err
		}
		req.Filter = &filter
	}

	switch req.Kind {
	case protocol.KindCalc:
		results, err := s.engine.Calc(ctx, *req.Entity)
		if err != nil {
			return nil, err
		}
		return protocol.NewCalcResponse(req, results), nil
	case protocol.KindDiff:
		results, err := s.engine.Diff(ctx, *req.Entity)
		if err != nil {
			return nil, err
		}
		return protocol.NewDiffResponse(req, results), nil
	case protocol.KindSync:
		outcomes, err := s.engine.Sync(ctx, *req.Entity)
		if err != nil {
			return nil, err
		}
		return protocol.NewSyncResponse(req, outcomes), nil
	case protocol.KindBulkCalc:
		res, err := s.engine.BulkCalc(ctx, *req.Filter)
		if err != nil {
			return nil, err
		}
		return protocol.NewBulkCalcResponse(req, res), nil
	case protocol.KindBulkDiff:
		res, err := s.engine.BulkDiff(ctx, *req.Filter)
		if err != nil {
			return nil, err
		}
		return protocol.NewBulkDiffResponse(req, res), nil
	case protocol.KindBulkSync:
		res, err := s.engine.BulkSync(ctx, *req.Filter)
		if err != nil {
			return nil, err
		}
		return protocol.NewBulkSyncResponse(req, res), nil
	default:
		return nil, fmt.Errorf("unknown request kind %q", req.Kind)
	}
}

// scope narrows a bulk filter to the root base. A filtered run never
// deletes orphans, so objects outside the base are left alone.
func (s *Service) scope(f provision.RootFilter) (provision.RootFilter, error) {
	switch {
	case s.rootBase == "" || within(f.Under, s.rootBase):
		return f, nil
	case f.Under == "" || within(s.rootBase, f.Under):
		f.Under = s.rootBase
		return f, nil
	default:
		return f, &provision.ConfigurationError{Reason: fmt.Sprintf("%q is outside the root base %q", f.Under, s.rootBase)}
	}
}

func within(name, base string) bool {
	return name == base || strings.HasPrefix(name, base+source.Separator)
}

// RunChangelog processes one batch of change events. It returns a nil
// outcome when the feed is drained.
func (s *Service) RunChangelog(ctx context.Context) (*changelog.Outcome, error) {
	if s.consumer == nil {
		return nil, ErrNoConsumer
	}
	if !s.run.TryLock() {
		return nil, ErrConsumerBusy
	}
	defer s.run.Unlock()
	return s.consumer.RunOnce(ctx)
}

// Consume runs the consumer loop until ctx is cancelled. Manual runs are
// refused while it holds the consumer.
func (s *Service) Consume(ctx context.Context, poll time.Duration) error {
	if s.consumer == nil {
		return ErrNoConsumer
	}
	s.run.Lock()
	defer s.run.Unlock()
	return s.consumer.Run(ctx, poll)
}

// Checkpoint returns the consumer's committed checkpoint.
func (s *Service) Checkpoint(ctx context.Context) (provision.Checkpoint, error) {
	if s.consumer == nil {
		return provision.Checkpoint{}, ErrNoConsumer
	}
	return s.consumer.Checkpoint(ctx)
}
