// Package showsync ingests venue listings from an upstream source,
// enriches them with geocoding, travel time and an embedding, and keeps a
// relational/spatial/vector store and a graph store in sync, idempotently
// across repeated runs.
package showsync

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/nyonlabs/showsync/core/reconcile"
	"github.com/nyonlabs/showsync/database"
	"github.com/nyonlabs/showsync/enrich"
	"github.com/nyonlabs/showsync/graph"
	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	"github.com/nyonlabs/showsync/source"
	loadSql "github.com/nyonlabs/showsync/sql"
)

// Ingestor provides a unified interface to the ingestion pipeline
type Ingestor struct {
	DB       *helper.Database
	Venues   *database.VenuesDBHandler
	Graph    *graph.Store
	Enricher *enrich.Enricher
	Engine   *reconcile.Engine
	Source   source.Adapter
	Config   model.IngestConfig
	// Logging
	log *slog.Logger
}

// NewIngestor creates a new Ingestor instance with both stores initialized.
// The enrichment providers may be nil; a nil provider always degrades to
// its configured fallback value.
func NewIngestor(
	dbConfig *helper.DatabaseConfiguration,
	graphConfig *helper.GraphConfiguration,
	src source.Adapter,
	geocoder enrich.Geocoder,
	travel enrich.TravelEstimator,
	embedder enrich.Embedder,
	config model.IngestConfig,
) (*Ingestor, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize relational database
	db := helper.NewDatabase("showsync", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	venues, err := database.NewVenuesDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create venues handler", err)
	}

	graphStore, err := graph.NewStore(context.Background(), graphConfig, logger)
	if err != nil {
		return nil, helper.NewError("create graph store", err)
	}

	enricher, err := enrich.NewEnricher(geocoder, travel, embedder, config, logger)
	if err != nil {
		return nil, helper.NewError("create enricher", err)
	}

	engine, err := reconcile.NewEngine(src, venues, graphStore, enricher, config, logger)
	if err != nil {
		return nil, helper.NewError("create reconciliation engine", err)
	}

	return &Ingestor{
		DB:       db,
		Venues:   venues,
		Graph:    graphStore,
		Enricher: enricher,
		Engine:   engine,
		Source:   src,
		Config:   config,
		log:      logger,
	}, nil
}

// Run ingests the given localities into both stores and returns the run
// report. Record failures never propagate as errors; the report carries
// them.
func (i *Ingestor) Run(ctx context.Context, localities []string) *model.RunReport {
	return i.Engine.Run(ctx, localities)
}

// RepairGraph re-runs the graph upsert for the given identities from the
// authoritative relational rows. This is the repair path for records left
// partially-synced by an earlier run.
func (i *Ingestor) RepairGraph(ctx context.Context, identities []model.Identity) error {
	var errs []error
	for _, identity := range identities {
		venue, err := i.Venues.SelectVenue(ctx, identity)
		if err != nil {
			i.log.Warn("Repair: venue not readable",
				slog.String("identity", identity.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if err := i.Graph.UpsertVenue(ctx, venue); err != nil {
			i.log.Warn("Repair: graph upsert failed",
				slog.String("identity", identity.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		i.log.Info("Repaired graph for venue", slog.String("identity", identity.String()))
	}
	return errors.Join(errs...)
}

// Close releases the worker pools and closes both store connections.
func (i *Ingestor) Close() error {
	if i.Engine != nil {
		i.Engine.Release()
	}
	if i.Enricher != nil {
		i.Enricher.Release()
	}

	var errs []error
	if i.Graph != nil {
		if err := i.Graph.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if i.DB != nil && i.DB.Instance != nil {
		if err := i.DB.Instance.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
