package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
)

const (
	geocodeEndpoint        = "https://maps.googleapis.com/maps/api/geocode/json"
	distanceMatrixEndpoint = "https://maps.googleapis.com/maps/api/distancematrix/json"
)

// GoogleGeocoder resolves addresses via the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGoogleGeocoder creates a geocoder. An empty API key is a supported
// configuration; every Resolve call then errors and the Enricher falls
// back.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:   apiKey,
		endpoint: geocodeEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Resolve geocodes the address.
func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (float64, float64, error) {
	if g.apiKey == "" {
		return 0, 0, helper.NewError("geocode", fmt.Errorf("no API credential configured"))
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	var decoded geocodeResponse
	if err := getJSON(ctx, g.client, g.endpoint+"?"+params.Encode(), &decoded); err != nil {
		return 0, 0, helper.NewError("geocode", err)
	}

	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return 0, 0, helper.NewError("geocode", fmt.Errorf("provider status %q", decoded.Status))
	}

	loc := decoded.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// GoogleTravelEstimator estimates travel time via the Google Distance
// Matrix API from a fixed origin.
type GoogleTravelEstimator struct {
	apiKey   string
	origin   string
	endpoint string
	client   *http.Client
}

// NewGoogleTravelEstimator creates a travel estimator with a fixed origin.
// An empty API key is a supported configuration that always falls back.
func NewGoogleTravelEstimator(apiKey string, origin string, timeout time.Duration) *GoogleTravelEstimator {
	return &GoogleTravelEstimator{
		apiKey:   apiKey,
		origin:   origin,
		endpoint: distanceMatrixEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// Estimate queries travel time and distance from the origin.
func (t *GoogleTravelEstimator) Estimate(ctx context.Context, lat float64, lng float64) (model.TravelInfo, error) {
	if t.apiKey == "" {
		return model.TravelInfo{}, helper.NewError("travel estimate", fmt.Errorf("no API credential configured"))
	}

	params := url.Values{}
	params.Set("origins", t.origin)
	params.Set("destinations", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("key", t.apiKey)

	var decoded distanceMatrixResponse
	if err := getJSON(ctx, t.client, t.endpoint+"?"+params.Encode(), &decoded); err != nil {
		return model.TravelInfo{}, helper.NewError("travel estimate", err)
	}

	if decoded.Status != "OK" || len(decoded.Rows) == 0 || len(decoded.Rows[0].Elements) == 0 {
		return model.TravelInfo{}, helper.NewError("travel estimate", fmt.Errorf("provider status %q", decoded.Status))
	}

	elem := decoded.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return model.TravelInfo{}, helper.NewError("travel estimate", fmt.Errorf("element status %q", elem.Status))
	}

	return model.TravelInfo{
		TravelTimeMinutes: elem.Duration.Value / 60,
		DistanceMeters:    elem.Distance.Value,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
