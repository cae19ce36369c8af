package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
)

// ErrStoreWrite marks a failed write to the graph store. After a successful
// relational write this is non-fatal: the record becomes partially-synced
// and is picked up by a later repair pass.
var ErrStoreWrite = errors.New("graph store write failed")

// StoreFunctions defines the interface for graph store operations.
type StoreFunctions interface {
	UpsertVenue(ctx context.Context, venue *model.Venue) error
	ShownItems(ctx context.Context, identity model.Identity) ([]string, error)
	CountVenueNodes(ctx context.Context) (int64, error)
	CountShowsEdges(ctx context.Context) (int64, error)
	DeleteVenue(ctx context.Context, identity model.Identity) error
}

// Store handles venue and item nodes in the graph store. The underlying
// driver pools connections and is safe for concurrent use.
type Store struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// NewStore connects to the graph store and verifies connectivity.
func NewStore(ctx context.Context, config *helper.GraphConfiguration, logger *slog.Logger) (*Store, error) {
	if config == nil {
		return nil, helper.NewError("graph configuration validation", fmt.Errorf("graph configuration is nil"))
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, helper.NewError("create graph driver", err)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, helper.NewError("verify graph connectivity", err)
	}

	store := &Store{
		driver: driver,
		logger: logger,
	}

	store.ensureConstraints(ctx)

	logger.Info("Connected to graph store", slog.String("uri", config.URI))

	return store, nil
}

// ensureConstraints creates uniqueness constraints best-effort. MERGE
// already guarantees no duplicates within this pipeline; the constraints
// guard against writers outside it.
func (s *Store) ensureConstraints(ctx context.Context) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT item_title IF NOT EXISTS FOR (i:Item) REQUIRE i.title IS UNIQUE`,
		`CREATE CONSTRAINT venue_identity IF NOT EXISTS FOR (v:Venue) REQUIRE (v.name, v.locality) IS UNIQUE`,
	}
	for _, stmt := range statements {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		})
		if err != nil {
			s.logger.Warn("Could not create graph constraint", slog.String("statement", stmt), slog.Any("error", err))
		}
	}
}

// UpsertVenue merges the venue node and one SHOWS edge per distinct item
// title in its source data. Re-running never creates parallel duplicate
// nodes or edges for the same (venue, item) pair. Edges for titles no
// longer in the source data are removed in the same transaction, so the
// graph always mirrors the relational row's schedule. Item nodes stay;
// other venues may still show them.
func (s *Store) UpsertVenue(ctx context.Context, venue *model.Venue) error {
	schedule, err := venue.SourceData.Schedule()
	if err != nil {
		return helper.NewError("decode schedule", fmt.Errorf("%w: %w", ErrStoreWrite, err))
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MERGE (v:Venue {name: $name, locality: $locality})
			 SET v.address = $address`,
			map[string]any{
				"name":     venue.Name,
				"locality": venue.Locality,
				"address":  venue.Address,
			})
		if err != nil {
			return nil, err
		}

		seen := map[string]bool{}
		titles := []any{}
		for _, item := range schedule {
			if item.Title == "" || seen[item.Title] {
				continue
			}
			seen[item.Title] = true
			titles = append(titles, item.Title)

			query := `MERGE (i:Item {title: $title})
				 WITH i
				 MATCH (v:Venue {name: $name, locality: $locality})
				 MERGE (v)-[:SHOWS]->(i)`
			params := map[string]any{
				"title":    item.Title,
				"name":     venue.Name,
				"locality": venue.Locality,
			}
			// Genre is only set when the source provides it, never
			// overwritten with an empty value.
			if item.Genre != "" {
				query = `MERGE (i:Item {title: $title})
				 SET i.genre = $genre
				 WITH i
				 MATCH (v:Venue {name: $name, locality: $locality})
				 MERGE (v)-[:SHOWS]->(i)`
				params["genre"] = item.Genre
			}

			_, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
		}

		_, err = tx.Run(ctx,
			`MATCH (v:Venue {name: $name, locality: $locality})-[r:SHOWS]->(i:Item)
			 WHERE NOT i.title IN $titles
			 DELETE r`,
			map[string]any{
				"name":     venue.Name,
				"locality": venue.Locality,
				"titles":   titles,
			})
		if err != nil {
			return nil, err
		}

		return nil, nil
	})
	if err != nil {
		return helper.NewError("upsert venue", fmt.Errorf("%w: %w", ErrStoreWrite, err))
	}

	return nil
}

// ShownItems returns the titles of all items the venue has a SHOWS edge to.
func (s *Store) ShownItems(ctx context.Context, identity model.Identity) ([]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (v:Venue {name: $name, locality: $locality})-[:SHOWS]->(i:Item)
			 RETURN i.title AS title ORDER BY title`,
			map[string]any{
				"name":     identity.Name,
				"locality": identity.Locality,
			})
		if err != nil {
			return nil, err
		}

		var titles []string
		for res.Next(ctx) {
			title, _, err := neo4j.GetRecordValue[string](res.Record(), "title")
			if err != nil {
				return nil, err
			}
			titles = append(titles, title)
		}
		return titles, res.Err()
	})
	if err != nil {
		return nil, helper.NewError("query shown items", err)
	}

	return result.([]string), nil
}

// CountVenueNodes returns the number of venue nodes in the graph store.
func (s *Store) CountVenueNodes(ctx context.Context) (int64, error) {
	return s.count(ctx, `MATCH (v:Venue) RETURN count(v) AS n`)
}

// CountShowsEdges returns the number of SHOWS edges in the graph store.
func (s *Store) CountShowsEdges(ctx context.Context) (int64, error) {
	return s.count(ctx, `MATCH (:Venue)-[r:SHOWS]->(:Item) RETURN count(r) AS n`)
}

// itemGenre returns the genre attribute of an item node, empty when unset.
func (s *Store) itemGenre(ctx context.Context, title string) (string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (i:Item {title: $title}) RETURN coalesce(i.genre, '') AS genre`,
			map[string]any{"title": title})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		genre, _, err := neo4j.GetRecordValue[string](record, "genre")
		return genre, err
	})
	if err != nil {
		return "", helper.NewError("query item genre", err)
	}

	return result.(string), nil
}

func (s *Store) count(ctx context.Context, query string) (int64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _, err := neo4j.GetRecordValue[int64](record, "n")
		return n, err
	})
	if err != nil {
		return 0, helper.NewError("count", err)
	}

	return result.(int64), nil
}

// DeleteVenue removes the venue node and its edges. Item nodes stay; other
// venues may still show them.
func (s *Store) DeleteVenue(ctx context.Context, identity model.Identity) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (v:Venue {name: $name, locality: $locality}) DETACH DELETE v`,
			map[string]any{
				"name":     identity.Name,
				"locality": identity.Locality,
			})
		return nil, err
	})
	if err != nil {
		return helper.NewError("delete venue", fmt.Errorf("%w: %w", ErrStoreWrite, err))
	}

	return nil
}

// Close closes the graph driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
