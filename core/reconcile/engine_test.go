package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	listings map[string][]model.Listing
	errors   map[string]error
}

func (f *fakeSource) Fetch(ctx context.Context, locality string) ([]model.Listing, error) {
	if err, ok := f.errors[locality]; ok {
		return nil, err
	}
	return f.listings[locality], nil
}

type fakeVenueStore struct {
	mu      sync.Mutex
	upserts []*model.Venue
	failFor map[model.Identity]error
}

func (f *fakeVenueStore) UpsertVenue(ctx context.Context, venue *model.Venue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity := model.Identity{Name: venue.Name, Locality: venue.Locality}
	if err, ok := f.failFor[identity]; ok {
		return err
	}
	f.upserts = append(f.upserts, venue)
	return nil
}

func (f *fakeVenueStore) upserted(identity model.Identity) *model.Venue {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, venue := range f.upserts {
		if venue.Name == identity.Name && venue.Locality == identity.Locality {
			return venue
		}
	}
	return nil
}

type fakeGraphStore struct {
	mu      sync.Mutex
	upserts []model.Identity
	failFor map[model.Identity]error
}

func (f *fakeGraphStore) UpsertVenue(ctx context.Context, venue *model.Venue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity := model.Identity{Name: venue.Name, Locality: venue.Locality}
	if err, ok := f.failFor[identity]; ok {
		return err
	}
	f.upserts = append(f.upserts, identity)
	return nil
}

func (f *fakeGraphStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

type fakeEnricher struct {
	mu        sync.Mutex
	fallbacks []string
	addresses []string
}

func (f *fakeEnricher) Enrich(ctx context.Context, address string, summary string) model.Enrichment {
	f.mu.Lock()
	f.addresses = append(f.addresses, address)
	f.mu.Unlock()
	return model.Enrichment{
		Latitude:   46.2044,
		Longitude:  6.1432,
		TravelInfo: model.TravelInfo{TravelTimeMinutes: 25},
		Embedding:  []float32{0.1, 0.1, 0.1, 0.1},
		Fallbacks:  f.fallbacks,
	}
}

// writeCtxStore records properties of the context each write runs on.
type writeCtxStore struct {
	mu             sync.Mutex
	hasDeadline    bool
	cancelRun      context.CancelFunc
	errAfterCancel error
}

func (f *writeCtxStore) UpsertVenue(ctx context.Context, venue *model.Venue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.hasDeadline = ctx.Deadline()
	if f.cancelRun != nil {
		f.cancelRun()
		f.errAfterCancel = ctx.Err()
	}
	return nil
}

func listing(name string, locality string, titles ...string) model.Listing {
	schedule := make([]model.ItemSchedule, 0, len(titles))
	for _, title := range titles {
		schedule = append(schedule, model.ItemSchedule{Title: title, Showtimes: []string{"20:00"}})
	}
	return model.Listing{
		Locality: locality,
		Name:     name,
		Address:  fmt.Sprintf("%s street 1", name),
		Schedule: schedule,
	}
}

func testEngine(t *testing.T, src *fakeSource, venues *fakeVenueStore, graphStore *fakeGraphStore) *Engine {
	engine, err := NewEngine(src, venues, graphStore, &fakeEnricher{}, model.DefaultIngestConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
	require.NoError(t, err, "Expected NewEngine to not return an error")
	t.Cleanup(engine.Release)
	return engine
}

func outcomeFor(t *testing.T, report *model.RunReport, identity model.Identity) model.RecordOutcome {
	for _, rec := range report.Records() {
		if rec.Identity == identity {
			return rec
		}
	}
	t.Fatalf("no outcome recorded for %v", identity)
	return model.RecordOutcome{}
}

func TestNewEngine(t *testing.T) {
	t.Run("Create engine with valid dependencies", func(t *testing.T) {
		testEngine(t, &fakeSource{}, &fakeVenueStore{}, &fakeGraphStore{})
	})

	t.Run("Create engine with nil dependency", func(t *testing.T) {
		_, err := NewEngine(nil, &fakeVenueStore{}, &fakeGraphStore{}, &fakeEnricher{}, model.DefaultIngestConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
		assert.Error(t, err, "Expected an error for a nil source")
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful run writes both stores", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("CinéCity", "Geneve", "Movie A")},
		}}
		venues := &fakeVenueStore{}
		graphStore := &fakeGraphStore{}
		engine := testEngine(t, src, venues, graphStore)

		report := engine.Run(ctx, []string{"geneve"})

		ok, failed, partial := report.Counts()
		assert.Equal(t, 1, ok, "Expected one ok record")
		assert.Equal(t, 0, failed)
		assert.Equal(t, 0, partial)
		assert.Empty(t, report.SourceErrors())

		identity := model.Identity{Name: "CinéCity", Locality: "Geneve"}
		venue := venues.upserted(identity)
		require.NotNil(t, venue, "Expected the relational upsert to have happened")
		assert.Equal(t, 46.2044, venue.Latitude)
		assert.Equal(t, 25, venue.TravelInfo.TravelTimeMinutes)
		titles, err := venue.SourceData.Titles()
		require.NoError(t, err, "Expected Titles to not return an error")
		assert.Equal(t, []string{"Movie A"}, titles)
		assert.Equal(t, 1, graphStore.upsertCount(), "Expected one graph upsert")
	})

	t.Run("Relational failure skips the graph write", func(t *testing.T) {
		bad := model.Identity{Name: "Broken", Locality: "Geneve"}
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("Broken", "Geneve", "Movie A"), listing("Fine", "Geneve", "Movie B")},
		}}
		venues := &fakeVenueStore{failFor: map[model.Identity]error{bad: errors.New("connection reset")}}
		graphStore := &fakeGraphStore{}
		engine := testEngine(t, src, venues, graphStore)

		report := engine.Run(ctx, []string{"geneve"})

		ok, failed, partial := report.Counts()
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, failed)
		assert.Equal(t, 0, partial)

		rec := outcomeFor(t, report, bad)
		assert.Equal(t, model.OutcomeFailed, rec.Outcome)
		assert.Contains(t, rec.Err, "connection reset")
		assert.Equal(t, 1, graphStore.upsertCount(), "Expected no graph write for the failed identity")
	})

	t.Run("Graph failure after relational success is partially-synced", func(t *testing.T) {
		stale := model.Identity{Name: "Stale", Locality: "Geneve"}
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("Stale", "Geneve", "Movie A"), listing("Fine", "Geneve", "Movie B")},
		}}
		venues := &fakeVenueStore{}
		graphStore := &fakeGraphStore{failFor: map[model.Identity]error{stale: errors.New("bolt handshake failed")}}
		engine := testEngine(t, src, venues, graphStore)

		report := engine.Run(ctx, []string{"geneve"})

		ok, failed, partial := report.Counts()
		assert.Equal(t, 1, ok)
		assert.Equal(t, 0, failed)
		assert.Equal(t, 1, partial)

		assert.NotNil(t, venues.upserted(stale), "Expected the relational row to stay committed")
		assert.Equal(t, []model.Identity{stale}, report.PartiallySyncedIdentities(),
			"Expected the stale identity to be listed for repair")
	})

	t.Run("Duplicate identities collapse with later occurrence winning", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {
				listing("CinéCity", "Geneve", "Old Movie"),
				listing("CinéCity", "Geneve", "New Movie"),
			},
		}}
		venues := &fakeVenueStore{}
		graphStore := &fakeGraphStore{}
		engine := testEngine(t, src, venues, graphStore)

		report := engine.Run(ctx, []string{"geneve"})

		ok, _, _ := report.Counts()
		assert.Equal(t, 1, ok, "Expected a single outcome for the duplicated identity")
		require.Len(t, venues.upserts, 1, "Expected a single relational upsert")
		titles, err := venues.upserts[0].SourceData.Titles()
		require.NoError(t, err, "Expected Titles to not return an error")
		assert.Equal(t, []string{"New Movie"}, titles, "Expected the later occurrence to win")
	})

	t.Run("Source failure isolates to its locality", func(t *testing.T) {
		src := &fakeSource{
			listings: map[string][]model.Listing{
				"geneve": {listing("CinéCity", "Geneve", "Movie A")},
			},
			errors: map[string]error{"lausanne": errors.New("status 503")},
		}
		venues := &fakeVenueStore{}
		graphStore := &fakeGraphStore{}
		engine := testEngine(t, src, venues, graphStore)

		report := engine.Run(ctx, []string{"geneve", "lausanne"})

		ok, failed, _ := report.Counts()
		assert.Equal(t, 1, ok, "Expected the healthy locality to be processed")
		assert.Equal(t, 0, failed)
		assert.Contains(t, report.SourceErrors(), "lausanne", "Expected the failed locality in the report")
		assert.Contains(t, report.SourceErrors()["lausanne"], "status 503")
	})

	t.Run("Fallback flags propagate into the report", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("CinéCity", "Geneve", "Movie A")},
		}}
		enricher := &fakeEnricher{fallbacks: []string{model.FallbackGeocode, model.FallbackTravel, model.FallbackEmbedding}}
		engine, err := NewEngine(src, &fakeVenueStore{}, &fakeGraphStore{}, enricher, model.DefaultIngestConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
		require.NoError(t, err, "Expected NewEngine to not return an error")
		t.Cleanup(engine.Release)

		report := engine.Run(ctx, []string{"geneve"})

		identity := model.Identity{Name: "CinéCity", Locality: "Geneve"}
		rec := outcomeFor(t, report, identity)
		assert.Equal(t, model.OutcomeOK, rec.Outcome, "Expected fallbacks to not fail the record")
		assert.Equal(t, []string{model.FallbackGeocode, model.FallbackTravel, model.FallbackEmbedding}, rec.Fallbacks)
		assert.Equal(t, []model.Identity{identity}, report.FallbackIdentities())
		assert.Equal(t, 3, report.FallbackCount())
	})

	t.Run("Geocoding address carries the configured suffix", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("CinéCity", "Geneve", "Movie A")},
		}}
		enricher := &fakeEnricher{}
		engine, err := NewEngine(src, &fakeVenueStore{}, &fakeGraphStore{}, enricher, model.DefaultIngestConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
		require.NoError(t, err, "Expected NewEngine to not return an error")
		t.Cleanup(engine.Release)

		engine.Run(ctx, []string{"geneve"})

		require.Len(t, enricher.addresses, 1, "Expected one enrichment call")
		assert.Equal(t, "CinéCity street 1, Geneve, Switzerland", enricher.addresses[0],
			"Expected the country suffix on the geocoding address")
	})

	t.Run("Store writes carry a deadline and outlive run cancellation", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("CinéCity", "Geneve", "Movie A")},
		}}
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		venues := &writeCtxStore{cancelRun: cancel}
		graphStore := &fakeGraphStore{}
		engine, err := NewEngine(src, venues, graphStore, &fakeEnricher{}, model.DefaultIngestConfig(), helper.NewLogger(os.Stdout, slog.LevelError))
		require.NoError(t, err, "Expected NewEngine to not return an error")
		t.Cleanup(engine.Release)

		report := engine.Run(runCtx, []string{"geneve"})

		ok, _, _ := report.Counts()
		assert.Equal(t, 1, ok, "Expected the record to complete")
		assert.True(t, venues.hasDeadline, "Expected the write context to carry a deadline")
		assert.NoError(t, venues.errAfterCancel, "Expected run cancellation to not reach an in-flight write")
		assert.Equal(t, 1, graphStore.upsertCount(), "Expected the graph write to still run after cancellation")
	})

	t.Run("Cancelled context stops scheduling", func(t *testing.T) {
		src := &fakeSource{listings: map[string][]model.Listing{
			"geneve": {listing("CinéCity", "Geneve", "Movie A"), listing("Rex", "Geneve", "Movie B")},
		}}
		venues := &fakeVenueStore{}
		graphStore := &fakeGraphStore{}
		engine := testEngine(t, src, venues, graphStore)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		report := engine.Run(cancelled, []string{"geneve"})

		assert.Empty(t, report.Records(), "Expected no records scheduled on a cancelled context")
	})
}
