package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed venues.sql
var venuesSQL string

// Function lists for verification
var VenuesFunctions = []string{
	"init_venues",
	"upsert_venue",
	"select_venue",
	"select_all_venues",
	"delete_venue",
	"count_venues",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadVenuesSql loads venue-related SQL functions
func LoadVenuesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, VenuesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing venues functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(venuesSQL)
	if err != nil {
		return fmt.Errorf("error executing venues SQL: %w", err)
	}

	exist, err := checkFunctions(db, VenuesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL venues functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	return LoadVenuesSql(db, force)
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
