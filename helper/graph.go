package helper

import (
	"fmt"
	"os"
)

// GraphConfiguration holds the connection parameters for the graph store.
type GraphConfiguration struct {
	URI      string
	Username string
	Password string
}

// NewGraphConfiguration creates a configuration from environment variables
// (GRAPH_URI, GRAPH_USERNAME, GRAPH_PASSWORD).
func NewGraphConfiguration() (*GraphConfiguration, error) {
	config := &GraphConfiguration{
		URI:      os.Getenv("GRAPH_URI"),
		Username: os.Getenv("GRAPH_USERNAME"),
		Password: os.Getenv("GRAPH_PASSWORD"),
	}

	if config.URI == "" {
		return nil, NewError("graph configuration", fmt.Errorf("GRAPH_URI must be set"))
	}

	return config, nil
}
