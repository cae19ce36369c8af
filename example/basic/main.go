package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/nyonlabs/showsync"
	"github.com/nyonlabs/showsync/enrich"
	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	"github.com/nyonlabs/showsync/source"
)

const genevePage = `<html><body>
<div class="cinema-list">
  <div class="cinema-block">
    <div class="cinema-name">CinéCity</div>
    <div class="cinema-address">Rue de Genève 1</div>
    <div class="movie-block">
      <div class="movie-title">Movie A</div>
      <span class="showtime">18:00</span>
      <span class="showtime">20:30</span>
    </div>
  </div>
</div>
</body></html>`

func main() {
	// Optional credentials; without them every provider falls back.
	_ = godotenv.Load()

	// Start a test PostgreSQL container
	pgTeardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer pgTeardown(context.Background())

	// Start a test Neo4j container
	graphTeardown, boltURL, err := helper.MustStartNeo4jContainer()
	if err != nil {
		log.Fatalf("Failed to start Neo4j container: %v", err)
	}
	defer graphTeardown(context.Background())

	// Serve a fixture listing page instead of the production site
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, genevePage)
	}))
	defer server.Close()

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}
	graphConfig := &helper.GraphConfiguration{
		URI:      boltURL,
		Username: "neo4j",
		Password: "password",
	}

	config := model.DefaultIngestConfig()

	src := source.NewCinemanAdapter(server.URL, config.SourceTimeout, helper.NewLogger(os.Stdout, slog.LevelInfo))

	googleKey := os.Getenv("GOOGLE_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	geocoder := enrich.NewGoogleGeocoder(googleKey, config.ProviderTimeout)
	travel := enrich.NewGoogleTravelEstimator(googleKey, config.TravelOrigin, config.ProviderTimeout)
	embedder := enrich.NewOpenAIEmbedder(openaiKey, openai.SmallEmbedding3, config.EmbeddingDim)

	ingestor, err := showsync.NewIngestor(dbConfig, graphConfig, src, geocoder, travel, embedder, config)
	if err != nil {
		log.Fatalf("Failed to create ingestor: %v", err)
	}
	defer ingestor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report := ingestor.Run(ctx, []string{"geneve"})
	fmt.Println("First run: ", report.Summary())

	// Re-running over an unchanged source updates in place, no duplicates.
	report = ingestor.Run(ctx, []string{"geneve"})
	fmt.Println("Second run:", report.Summary())

	venues, err := ingestor.Venues.SelectAllVenues(ctx)
	if err != nil {
		log.Fatalf("Failed to read venues back: %v", err)
	}
	for _, venue := range venues {
		fmt.Printf("%s @ (%.4f, %.4f), %d min away\n",
			venue.Identity(), venue.Latitude, venue.Longitude, venue.TravelInfo.TravelTimeMinutes)
	}
}
