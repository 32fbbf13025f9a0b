package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves free-text place names to coordinates via the
// Google Geocoding API. Without an API key it falls back to a built-in
// table of major Indian cities.
type Geocoder struct {
	apiURL string
	apiKey string
	region string
	client *http.Client
}

// Config holds configuration for the geocoder
type Config struct {
	APIURL string
	APIKey string
	Region string
}

// NewGeocoder creates a new geocoder client
func NewGeocoder(config Config) *Geocoder {
	return &Geocoder{
		apiURL: config.APIURL,
		apiKey: config.APIKey,
		region: config.Region,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// geocodeResponse is the subset of the Google Geocoding API response we read
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location Coordinate `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address to a coordinate. Returns (nil, nil) when
// the address cannot be resolved; callers treat that as "ask the user
// again", not as a failure.
func (g *Geocoder) Geocode(address string) (*Coordinate, error) {
	if g.apiKey == "" {
		return mockLocation(address), nil
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)
	if g.region != "" {
		params.Set("region", g.region)
	}

	resp, err := g.client.Get(g.apiURL + "?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}

	var geocodeResp geocodeResponse
	if err := json.Unmarshal(body, &geocodeResp); err != nil {
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}

	if geocodeResp.Status != "OK" || len(geocodeResp.Results) == 0 {
		return nil, nil
	}

	location := geocodeResp.Results[0].Geometry.Location
	return &location, nil
}

// cityTable covers major Indian cities for keyless development setups
var cityTable = map[string]Coordinate{
	"mumbai":    {Lat: 19.0760, Lng: 72.8777},
	"delhi":     {Lat: 28.7041, Lng: 77.1025},
	"bangalore": {Lat: 12.9716, Lng: 77.5946},
	"hyderabad": {Lat: 17.3850, Lng: 78.4867},
	"chennai":   {Lat: 13.0827, Lng: 80.2707},
	"kolkata":   {Lat: 22.5726, Lng: 88.3639},
	"pune":      {Lat: 18.5204, Lng: 73.8567},
	"ahmedabad": {Lat: 23.0225, Lng: 72.5714},
	"surat":     {Lat: 21.1702, Lng: 72.8311},
	"jaipur":    {Lat: 26.9124, Lng: 75.7873},
}

func mockLocation(city string) *Coordinate {
	normalized := strings.ToLower(strings.TrimSpace(city))
	if coord, ok := cityTable[normalized]; ok {
		return &coord
	}
	return nil
}
