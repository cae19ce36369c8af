package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
)

// Enricher runs the three enrichment providers for one listing. Every
// provider call is admitted by that provider's own worker pool, so the
// concurrency ceiling is enforced per provider, not per record. Failure,
// timeout or a missing credential never surfaces as an error: the
// configured fallback value is substituted and the degradation is flagged.
type Enricher struct {
	geocoder Geocoder
	travel   TravelEstimator
	embedder Embedder

	config model.IngestConfig

	geocodePool *ants.Pool
	travelPool  *ants.Pool
	embedPool   *ants.Pool

	logger *slog.Logger
}

// NewEnricher creates an enricher with one bounded pool per provider.
// Providers may be nil; a nil provider always falls back.
func NewEnricher(geocoder Geocoder, travel TravelEstimator, embedder Embedder, config model.IngestConfig, logger *slog.Logger) (*Enricher, error) {
	geocodePool, err := ants.NewPool(poolSize(config.GeocodeWorkers))
	if err != nil {
		return nil, helper.NewError("create geocode pool", err)
	}

	travelPool, err := ants.NewPool(poolSize(config.TravelWorkers))
	if err != nil {
		geocodePool.Release()
		return nil, helper.NewError("create travel pool", err)
	}

	embedPool, err := ants.NewPool(poolSize(config.EmbedWorkers))
	if err != nil {
		geocodePool.Release()
		travelPool.Release()
		return nil, helper.NewError("create embed pool", err)
	}

	return &Enricher{
		geocoder:    geocoder,
		travel:      travel,
		embedder:    embedder,
		config:      config,
		geocodePool: geocodePool,
		travelPool:  travelPool,
		embedPool:   embedPool,
		logger:      logger,
	}, nil
}

func poolSize(size int) int {
	if size < 1 {
		return 1
	}
	return size
}

// Enrich resolves coordinates, travel metrics and an embedding for one
// listing. The embedding runs concurrently with geocoding; the travel
// estimate starts once coordinates (real or fallback) are known, since it
// consumes them. The returned Enrichment is always fully populated.
func (e *Enricher) Enrich(ctx context.Context, address string, summary string) model.Enrichment {
	var (
		wg sync.WaitGroup

		lat, lng        float64
		geocodeFallback bool

		travelInfo     model.TravelInfo
		travelFallback bool

		embedding     []float32
		embedFallback bool
	)

	wg.Add(2)

	e.submit(e.geocodePool, func() {
		defer wg.Done()
		lat, lng, geocodeFallback = e.resolve(ctx, address)

		// Travel consumes the coordinates, so it is chained after
		// geocoding inside the same goroutine slot.
		done := make(chan struct{})
		e.submit(e.travelPool, func() {
			defer close(done)
			travelInfo, travelFallback = e.estimate(ctx, lat, lng)
		})
		<-done
	})

	e.submit(e.embedPool, func() {
		defer wg.Done()
		embedding, embedFallback = e.embed(ctx, summary)
	})

	wg.Wait()

	enrichment := model.Enrichment{
		Latitude:   lat,
		Longitude:  lng,
		TravelInfo: travelInfo,
		Embedding:  embedding,
	}
	if geocodeFallback {
		enrichment.Fallbacks = append(enrichment.Fallbacks, model.FallbackGeocode)
	}
	if travelFallback {
		enrichment.Fallbacks = append(enrichment.Fallbacks, model.FallbackTravel)
	}
	if embedFallback {
		enrichment.Fallbacks = append(enrichment.Fallbacks, model.FallbackEmbedding)
	}

	return enrichment
}

// submit schedules the task on the pool, falling back to inline execution
// when the pool is released.
func (e *Enricher) submit(pool *ants.Pool, task func()) {
	if err := pool.Submit(task); err != nil {
		task()
	}
}

func (e *Enricher) resolve(ctx context.Context, address string) (float64, float64, bool) {
	if e.geocoder == nil {
		return e.config.FallbackLatitude, e.config.FallbackLongitude, true
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.ProviderTimeout)
	defer cancel()

	lat, lng, err := e.geocoder.Resolve(callCtx, address)
	if err != nil {
		e.logger.Warn("Geocoding degraded to fallback",
			slog.String("address", address), slog.Any("error", err))
		return e.config.FallbackLatitude, e.config.FallbackLongitude, true
	}

	return lat, lng, false
}

func (e *Enricher) estimate(ctx context.Context, lat float64, lng float64) (model.TravelInfo, bool) {
	fallback := model.TravelInfo{
		TravelTimeMinutes: e.config.FallbackTravelMinutes,
		DistanceMeters:    0,
	}

	if e.travel == nil {
		return fallback, true
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.ProviderTimeout)
	defer cancel()

	travelInfo, err := e.travel.Estimate(callCtx, lat, lng)
	if err != nil {
		e.logger.Warn("Travel estimation degraded to fallback", slog.Any("error", err))
		return fallback, true
	}

	return travelInfo, false
}

func (e *Enricher) embed(ctx context.Context, summary string) ([]float32, bool) {
	if e.embedder == nil {
		return e.config.FallbackEmbedding(), true
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.ProviderTimeout)
	defer cancel()

	embedding, err := e.embedder.Embed(callCtx, summary)
	if err != nil {
		e.logger.Warn("Embedding degraded to fallback", slog.Any("error", err))
		return e.config.FallbackEmbedding(), true
	}
	if len(embedding) != e.config.EmbeddingDim {
		e.logger.Warn("Embedding dimension mismatch, using fallback",
			slog.Int("got", len(embedding)), slog.Int("want", e.config.EmbeddingDim))
		return e.config.FallbackEmbedding(), true
	}

	return embedding, false
}

// Release releases the provider pools.
func (e *Enricher) Release() {
	e.geocodePool.Release()
	e.travelPool.Release()
	e.embedPool.Release()
}
