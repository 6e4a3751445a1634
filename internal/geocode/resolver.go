package geocode

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"donorcli/internal/infrastructure"
	"donorcli/pkg/contracts/domain"
)

// Summary reports the outcome of a resolution pass.
type Summary struct {
	Requested  int `json:"requested"`
	Cached     int `json:"cached"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// ProgressFunc receives (done, total) after each lookup completes.
type ProgressFunc func(done, total int)

// Resolver fills cache gaps by looking up missing postcodes. Lookups run on a
// bounded worker pool but share the client's single rate limiter, so raising
// Workers improves latency overlap without raising request rate.
type Resolver struct {
	store           *Store
	client          *Client
	logger          *slog.Logger
	workers         int
	checkpointEvery int
	metrics         *infrastructure.PipelineMetrics

	// OnProgress, when set, is invoked after every completed lookup.
	OnProgress ProgressFunc
}

// NewResolver creates a resolver over the given store and client.
func NewResolver(store *Store, client *Client, workers, checkpointEvery int, logger *slog.Logger) *Resolver {
	if workers < 1 {
		workers = 1
	}
	if checkpointEvery < 1 {
		checkpointEvery = 50
	}
	return &Resolver{
		store:           store,
		client:          client,
		logger:          logger,
		workers:         workers,
		checkpointEvery: checkpointEvery,
	}
}

// WithMetrics attaches pipeline metrics to the resolver.
func (r *Resolver) WithMetrics(m *infrastructure.PipelineMetrics) *Resolver {
	r.metrics = m
	return r
}

// ResolveMissing looks up every postcode in codes that is not already cached,
// merging results into the store as they arrive. The store is checkpointed to
// disk periodically so an interrupted run keeps everything resolved so far.
// Unresolvable postcodes are counted but never abort the pass.
func (r *Resolver) ResolveMissing(ctx context.Context, codes []string) (*Summary, error) {
	summary := &Summary{Requested: len(codes)}

	missing := make([]string, 0)
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if r.store.Has(code) {
			summary.Cached++
			if r.metrics != nil {
				r.metrics.GeocodeCacheHits.Add(ctx, 1)
			}
			continue
		}
		missing = append(missing, code)
	}
	sort.Strings(missing)

	if r.metrics != nil && len(missing) > 0 {
		r.metrics.GeocodeCacheMisses.Add(ctx, int64(len(missing)))
	}

	r.logger.InfoContext(ctx, "resolving missing postcodes",
		slog.Int("requested", summary.Requested),
		slog.Int("cached", summary.Cached),
		slog.Int("missing", len(missing)))

	if len(missing) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	done := 0
	sinceCheckpoint := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, code := range missing {
		code := code
		g.Go(func() error {
			rec, err := r.lookup(gctx, code)

			mu.Lock()
			defer mu.Unlock()

			done++
			if r.OnProgress != nil {
				r.OnProgress(done, len(missing))
			}

			if err != nil {
				// Context cancellation aborts the pass; anything else
				// just leaves the postcode unresolved.
				if gctx.Err() != nil {
					return err
				}
				summary.Unresolved++
				r.logger.WarnContext(gctx, "postcode lookup failed",
					slog.String("postcode", code),
					slog.String("error", err.Error()))
				return nil
			}
			if rec == nil {
				summary.Unresolved++
				if r.metrics != nil {
					r.metrics.GeocodeUnresolvedTotal.Add(gctx, 1)
				}
				return nil
			}

			r.store.Merge([]domain.GeocodeRecord{*rec})
			summary.Resolved++
			sinceCheckpoint++
			if sinceCheckpoint >= r.checkpointEvery {
				sinceCheckpoint = 0
				if err := r.store.Save(); err != nil {
					r.logger.WarnContext(gctx, "cache checkpoint failed",
						slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Persist whatever resolved before cancellation.
		if saveErr := r.store.Save(); saveErr != nil {
			r.logger.ErrorContext(ctx, "cache save after cancellation failed",
				slog.String("error", saveErr.Error()))
		}
		return summary, err
	}

	if summary.Resolved > 0 {
		if err := r.store.Save(); err != nil {
			return summary, err
		}
	}

	r.logger.InfoContext(ctx, "postcode resolution complete",
		slog.Int("resolved", summary.Resolved),
		slog.Int("unresolved", summary.Unresolved))

	return summary, nil
}

// lookup performs a single resolution with one retry on transport error.
func (r *Resolver) lookup(ctx context.Context, code string) (rec *domain.GeocodeRecord, err error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.GeocodeLookupsTotal.Add(ctx, 1)
			r.metrics.GeocodeLookupDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	rec, err = r.client.Resolve(ctx, code)
	if err != nil && ctx.Err() == nil {
		rec, err = r.client.Resolve(ctx, code)
	}
	return rec, err
}
