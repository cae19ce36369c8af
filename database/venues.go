package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
	loadSql "github.com/nyonlabs/showsync/sql"
)

// ErrStoreWrite marks a failed write to the relational store (constraint
// violation or connectivity loss). The reconciliation engine treats it as
// fatal to the affected record only.
var ErrStoreWrite = errors.New("relational store write failed")

// VenuesDBHandlerFunctions defines the interface for Venues database operations.
type VenuesDBHandlerFunctions interface {
	UpsertVenue(ctx context.Context, venue *model.Venue) error
	SelectVenue(ctx context.Context, identity model.Identity) (*model.Venue, error)
	SelectAllVenues(ctx context.Context) ([]*model.Venue, error)
	DeleteVenue(ctx context.Context, identity model.Identity) error
	CountVenues(ctx context.Context) (int64, error)
}

// VenuesDBHandler handles venue-related database operations
type VenuesDBHandler struct {
	db *helper.Database
}

// NewVenuesDBHandler creates a new venues database handler.
// It initializes the database connection and loads venue-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewVenuesDBHandler(db *helper.Database, embeddingDim int, force bool) (*VenuesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	venuesDbHandler := &VenuesDBHandler{
		db: db,
	}

	err := loadSql.LoadVenuesSql(venuesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load venues sql", err)
	}

	err = venuesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized VenuesDBHandler")

	return venuesDbHandler, nil
}

// CreateTable creates the 'venues' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary extensions and indexes.
func (h *VenuesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_venues($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing venues table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table venues")

	return nil
}

// UpsertVenue inserts a venue or updates all mutable fields of an existing
// one. The operation is idempotent on (name, locality): re-running with the
// same identity never creates a second row.
func (h *VenuesDBHandler) UpsertVenue(ctx context.Context, venue *model.Venue) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_venue($1, $2, $3, $4, $5, $6, $7, $8)`,
		venue.Name,
		venue.Locality,
		venue.Address,
		venue.Latitude,
		venue.Longitude,
		venue.TravelInfo,
		venue.SourceData,
		pgvector.NewVector(venue.Embedding),
	)

	var embedding pgvector.Vector
	err := row.Scan(
		&venue.ID,
		&venue.RID,
		&venue.Name,
		&venue.Locality,
		&venue.Address,
		&venue.Latitude,
		&venue.Longitude,
		&venue.TravelInfo,
		&venue.SourceData,
		&embedding,
		&venue.CreatedAt,
		&venue.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", fmt.Errorf("%w: %w", ErrStoreWrite, err))
	}
	venue.Embedding = embedding.Slice()

	return nil
}

// SelectVenue retrieves a venue by its natural key.
func (h *VenuesDBHandler) SelectVenue(ctx context.Context, identity model.Identity) (*model.Venue, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_venue($1, $2)`,
		identity.Name,
		identity.Locality,
	)

	venue := &model.Venue{}
	var embedding pgvector.Vector

	err := row.Scan(
		&venue.ID,
		&venue.RID,
		&venue.Name,
		&venue.Locality,
		&venue.Address,
		&venue.Latitude,
		&venue.Longitude,
		&venue.TravelInfo,
		&venue.SourceData,
		&embedding,
		&venue.CreatedAt,
		&venue.UpdatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	venue.Embedding = embedding.Slice()

	return venue, nil
}

// SelectAllVenues retrieves all venues ordered by locality and name.
func (h *VenuesDBHandler) SelectAllVenues(ctx context.Context) ([]*model.Venue, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_venues()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var venues []*model.Venue
	for rows.Next() {
		venue := &model.Venue{}
		var embedding pgvector.Vector

		err := rows.Scan(
			&venue.ID,
			&venue.RID,
			&venue.Name,
			&venue.Locality,
			&venue.Address,
			&venue.Latitude,
			&venue.Longitude,
			&venue.TravelInfo,
			&venue.SourceData,
			&embedding,
			&venue.CreatedAt,
			&venue.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		venue.Embedding = embedding.Slice()

		venues = append(venues, venue)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return venues, nil
}

// DeleteVenue deletes a venue by its natural key.
func (h *VenuesDBHandler) DeleteVenue(ctx context.Context, identity model.Identity) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_venue($1, $2)`,
		identity.Name,
		identity.Locality,
	)
	if err != nil {
		return helper.NewError("exec", fmt.Errorf("%w: %w", ErrStoreWrite, err))
	}
	return nil
}

// CountVenues returns the total number of venue rows.
func (h *VenuesDBHandler) CountVenues(ctx context.Context) (int64, error) {
	var count int64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_venues()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}
