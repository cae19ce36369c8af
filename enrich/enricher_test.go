package enrich

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	lat, lng float64
	err      error
	calls    atomic.Int32
}

func (f *fakeGeocoder) Resolve(ctx context.Context, address string) (float64, float64, error) {
	f.calls.Add(1)
	return f.lat, f.lng, f.err
}

type fakeTravel struct {
	info   model.TravelInfo
	err    error
	gotLat float64
	gotLng float64
	calls  atomic.Int32
}

func (f *fakeTravel) Estimate(ctx context.Context, lat float64, lng float64) (model.TravelInfo, error) {
	f.calls.Add(1)
	f.gotLat, f.gotLng = lat, lng
	return f.info, f.err
}

type fakeEmbedder struct {
	embedding []float32
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, f.err
}

func testConfig() model.IngestConfig {
	config := model.DefaultIngestConfig()
	config.EmbeddingDim = 4
	return config
}

func testEnricher(t *testing.T, geocoder Geocoder, travel TravelEstimator, embedder Embedder) *Enricher {
	enricher, err := NewEnricher(geocoder, travel, embedder, testConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
	require.NoError(t, err, "Expected NewEnricher to not return an error")
	t.Cleanup(enricher.Release)
	return enricher
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("All providers succeed", func(t *testing.T) {
		geocoder := &fakeGeocoder{lat: 46.5197, lng: 6.6323}
		travel := &fakeTravel{info: model.TravelInfo{TravelTimeMinutes: 12, DistanceMeters: 3400}}
		embedder := &fakeEmbedder{embedding: []float32{0.1, 0.2, 0.3, 0.4}}
		enricher := testEnricher(t, geocoder, travel, embedder)

		enrichment := enricher.Enrich(ctx, "Avenue du Théâtre 6, Lausanne", "summary text")

		assert.Equal(t, 46.5197, enrichment.Latitude)
		assert.Equal(t, 6.6323, enrichment.Longitude)
		assert.Equal(t, 12, enrichment.TravelInfo.TravelTimeMinutes)
		assert.Equal(t, float64(3400), enrichment.TravelInfo.DistanceMeters)
		assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, enrichment.Embedding)
		assert.Empty(t, enrichment.Fallbacks, "Expected no fallback flags when every provider succeeds")
	})

	t.Run("Travel consumes resolved coordinates", func(t *testing.T) {
		geocoder := &fakeGeocoder{lat: 47.3769, lng: 8.5417}
		travel := &fakeTravel{info: model.TravelInfo{TravelTimeMinutes: 40}}
		enricher := testEnricher(t, geocoder, travel, &fakeEmbedder{embedding: make([]float32, 4)})

		enricher.Enrich(ctx, "Bahnhofstrasse 1, Zürich", "summary text")

		assert.Equal(t, 47.3769, travel.gotLat, "Expected the travel estimator to be fed the geocoded latitude")
		assert.Equal(t, 8.5417, travel.gotLng, "Expected the travel estimator to be fed the geocoded longitude")
	})

	t.Run("All providers fail", func(t *testing.T) {
		geocoder := &fakeGeocoder{err: errors.New("quota exceeded")}
		travel := &fakeTravel{err: errors.New("quota exceeded")}
		embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
		enricher := testEnricher(t, geocoder, travel, embedder)

		config := testConfig()
		enrichment := enricher.Enrich(ctx, "somewhere", "summary text")

		assert.Equal(t, config.FallbackLatitude, enrichment.Latitude, "Expected the fallback latitude")
		assert.Equal(t, config.FallbackLongitude, enrichment.Longitude, "Expected the fallback longitude")
		assert.Equal(t, config.FallbackTravelMinutes, enrichment.TravelInfo.TravelTimeMinutes, "Expected the fallback travel time")
		assert.Equal(t, float64(0), enrichment.TravelInfo.DistanceMeters, "Expected zero distance on fallback")
		assert.Equal(t, config.FallbackEmbedding(), enrichment.Embedding, "Expected the fill embedding")
		assert.Equal(t, []string{model.FallbackGeocode, model.FallbackTravel, model.FallbackEmbedding}, enrichment.Fallbacks,
			"Expected all three fallback flags in stable order")
	})

	t.Run("Nil providers always fall back", func(t *testing.T) {
		enricher := testEnricher(t, nil, nil, nil)

		config := testConfig()
		enrichment := enricher.Enrich(ctx, "somewhere", "summary text")

		assert.Equal(t, config.FallbackLatitude, enrichment.Latitude)
		assert.Equal(t, config.FallbackLongitude, enrichment.Longitude)
		assert.Equal(t, []string{model.FallbackGeocode, model.FallbackTravel, model.FallbackEmbedding}, enrichment.Fallbacks)
	})

	t.Run("Partial failure flags only the failed provider", func(t *testing.T) {
		geocoder := &fakeGeocoder{err: errors.New("not found")}
		travel := &fakeTravel{info: model.TravelInfo{TravelTimeMinutes: 9, DistanceMeters: 1200}}
		embedder := &fakeEmbedder{embedding: []float32{1, 2, 3, 4}}
		enricher := testEnricher(t, geocoder, travel, embedder)

		config := testConfig()
		enrichment := enricher.Enrich(ctx, "somewhere", "summary text")

		assert.Equal(t, []string{model.FallbackGeocode}, enrichment.Fallbacks, "Expected only the geocode flag")
		assert.Equal(t, 9, enrichment.TravelInfo.TravelTimeMinutes, "Expected the real travel estimate")
		assert.Equal(t, config.FallbackLatitude, travel.gotLat, "Expected travel to run on the fallback coordinates")
		assert.Equal(t, []float32{1, 2, 3, 4}, enrichment.Embedding)
	})

	t.Run("Embedding dimension mismatch falls back", func(t *testing.T) {
		embedder := &fakeEmbedder{embedding: []float32{1, 2}}
		enricher := testEnricher(t, &fakeGeocoder{lat: 1, lng: 2}, &fakeTravel{}, embedder)

		config := testConfig()
		enrichment := enricher.Enrich(ctx, "somewhere", "summary text")

		assert.Equal(t, config.FallbackEmbedding(), enrichment.Embedding, "Expected the fill embedding on dimension mismatch")
		assert.Equal(t, []string{model.FallbackEmbedding}, enrichment.Fallbacks)
	})

	t.Run("Enrich after Release still completes", func(t *testing.T) {
		geocoder := &fakeGeocoder{lat: 1, lng: 2}
		enricher, err := NewEnricher(geocoder, &fakeTravel{}, &fakeEmbedder{embedding: make([]float32, 4)}, testConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
		require.NoError(t, err, "Expected NewEnricher to not return an error")
		enricher.Release()

		enrichment := enricher.Enrich(ctx, "somewhere", "summary text")
		assert.Equal(t, float64(1), enrichment.Latitude, "Expected inline execution after the pools are released")
		assert.Empty(t, enrichment.Fallbacks)
	})
}
