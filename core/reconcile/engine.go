// Package reconcile turns normalized listings into persisted venues across
// the relational and graph stores and reports the per-identity outcome.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	"github.com/nyonlabs/showsync/source"
)

// VenueUpserter is the relational store dependency of the engine.
type VenueUpserter interface {
	UpsertVenue(ctx context.Context, venue *model.Venue) error
}

// GraphUpserter is the graph store dependency of the engine.
type GraphUpserter interface {
	UpsertVenue(ctx context.Context, venue *model.Venue) error
}

// Enricher is the enrichment dependency of the engine. It never fails, it
// only degrades.
type Enricher interface {
	Enrich(ctx context.Context, address string, summary string) model.Enrichment
}

// Engine orchestrates one ingestion run: fetch, dedupe, enrich, then the
// two-step saga of relational write followed by graph write. The relational
// store is the system of record; a graph failure after a successful
// relational write leaves the record partially-synced and retryable.
type Engine struct {
	source   source.Adapter
	venues   VenueUpserter
	graph    GraphUpserter
	enricher Enricher

	config model.IngestConfig
	pool   *ants.Pool
	logger *slog.Logger
}

// NewEngine creates a reconciliation engine with a bounded worker pool.
func NewEngine(src source.Adapter, venues VenueUpserter, graphStore GraphUpserter, enricher Enricher, config model.IngestConfig, logger *slog.Logger) (*Engine, error) {
	if src == nil || venues == nil || graphStore == nil || enricher == nil {
		return nil, helper.NewError("engine validation", fmt.Errorf("source, stores and enricher must be non-nil"))
	}

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, helper.NewError("create worker pool", err)
	}

	return &Engine{
		source:   src,
		venues:   venues,
		graph:    graphStore,
		enricher: enricher,
		config:   config,
		pool:     pool,
		logger:   logger,
	}, nil
}

// Run ingests the given localities and returns the run report. A failing
// locality fetch skips only that locality; a failing record affects only
// itself. Run never returns an error: the report is the result, whatever
// happened.
func (e *Engine) Run(ctx context.Context, localities []string) *model.RunReport {
	report := model.NewRunReport()

	var listings []model.Listing
	for _, locality := range localities {
		fetched, err := e.fetchLocality(ctx, locality)
		if err != nil {
			e.logger.Warn("Skipping locality",
				slog.String("locality", locality), slog.Any("error", err))
			report.AddSourceError(locality, err)
			continue
		}
		listings = append(listings, fetched...)
	}

	deduped := collapseDuplicates(listings)
	e.logger.Info("Reconciling listings",
		slog.Int("fetched", len(listings)), slog.Int("distinct", len(deduped)))

	var wg sync.WaitGroup
	for _, listing := range deduped {
		// Cancellation stops scheduling of new records; already scheduled
		// records run to completion.
		if ctx.Err() != nil {
			e.logger.Warn("Run cancelled, not scheduling remaining records",
				slog.Any("error", ctx.Err()))
			break
		}

		wg.Add(1)
		listing := listing
		err := e.pool.Submit(func() {
			defer wg.Done()
			e.reconcile(ctx, listing, report)
		})
		if err != nil {
			wg.Done()
			report.Add(model.RecordOutcome{
				Identity: listing.Identity(),
				Outcome:  model.OutcomeFailed,
				Err:      err.Error(),
			})
		}
	}
	wg.Wait()

	report.Finish()
	e.logger.Info("Run finished", slog.String("summary", report.Summary()))

	return report
}

func (e *Engine) fetchLocality(ctx context.Context, locality string) ([]model.Listing, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.config.SourceTimeout)
	defer cancel()
	return e.source.Fetch(fetchCtx, locality)
}

// collapseDuplicates keeps one listing per identity. When the same identity
// appears twice within one run, the later occurrence wins, so only one
// upsert happens per identity per run.
func collapseDuplicates(listings []model.Listing) []model.Listing {
	index := map[model.Identity]int{}
	var deduped []model.Listing
	for _, listing := range listings {
		identity := listing.Identity()
		if pos, ok := index[identity]; ok {
			deduped[pos] = listing
			continue
		}
		index[identity] = len(deduped)
		deduped = append(deduped, listing)
	}
	return deduped
}

// reconcile processes one listing end to end and records its outcome.
func (e *Engine) reconcile(ctx context.Context, listing model.Listing, report *model.RunReport) {
	identity := listing.Identity()

	summary := model.SummaryText(listing.Name, listing.Locality, listing.Address, listing.Titles())
	fullAddress := fmt.Sprintf("%s, %s", listing.Address, listing.Locality)
	if e.config.GeocodeSuffix != "" {
		fullAddress = fmt.Sprintf("%s, %s", fullAddress, e.config.GeocodeSuffix)
	}

	enrichment := e.enricher.Enrich(ctx, fullAddress, summary)

	venue := &model.Venue{
		Name:       listing.Name,
		Locality:   listing.Locality,
		Address:    listing.Address,
		Latitude:   enrichment.Latitude,
		Longitude:  enrichment.Longitude,
		TravelInfo: enrichment.TravelInfo,
		SourceData: model.NewSourceData(listing.Schedule),
		Embedding:  enrichment.Embedding,
	}

	if err := e.writeStore(ctx, venue, e.venues.UpsertVenue); err != nil {
		e.logger.Error("Relational upsert failed",
			slog.String("identity", identity.String()), slog.Any("error", err))
		report.Add(model.RecordOutcome{
			Identity:  identity,
			Outcome:   model.OutcomeFailed,
			Fallbacks: enrichment.Fallbacks,
			Err:       err.Error(),
		})
		return
	}

	if err := e.writeStore(ctx, venue, e.graph.UpsertVenue); err != nil {
		e.logger.Error("Graph upsert failed after relational commit",
			slog.String("identity", identity.String()), slog.Any("error", err))
		report.Add(model.RecordOutcome{
			Identity:  identity,
			Outcome:   model.OutcomePartiallySynced,
			Fallbacks: enrichment.Fallbacks,
			Err:       err.Error(),
		})
		return
	}

	report.Add(model.RecordOutcome{
		Identity:  identity,
		Outcome:   model.OutcomeOK,
		Fallbacks: enrichment.Fallbacks,
	})
}

// writeStore runs one store write. The write ignores run cancellation so
// no upsert is aborted midway, but it still carries its own deadline so a
// hung connection cannot stall the run indefinitely.
func (e *Engine) writeStore(ctx context.Context, venue *model.Venue, upsert func(context.Context, *model.Venue) error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.StoreTimeout)
	defer cancel()
	return upsert(writeCtx, venue)
}

// Release releases the worker pool.
func (e *Engine) Release() {
	e.pool.Release()
}
