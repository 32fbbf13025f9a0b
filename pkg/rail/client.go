package rail

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Client talks to the railway PNR / live-running API. The vendor's
// loosely-typed responses (stringly distances, "+15 min" delays) are
// normalized here so nothing downstream branches on vendor field shapes.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// Config holds configuration for the railway client
type Config struct {
	APIURL string
	APIKey string
}

// NewClient creates a new railway API client
func NewClient(config Config) *Client {
	return &Client{
		apiURL: config.APIURL,
		apiKey: config.APIKey,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// TicketInfo is a parsed PNR lookup result
type TicketInfo struct {
	PNR         string    `json:"pnr"`
	TrainNumber string    `json:"train_number"`
	TrainName   string    `json:"train_name"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Departure   time.Time `json:"departure"`
	Arrival     time.Time `json:"arrival"`
}

// pnrResponse mirrors the vendor PNR status payload
type pnrResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		PNR   string `json:"pnr"`
		Train struct {
			Number        string `json:"number"`
			Name          string `json:"name"`
			DepartureTime string `json:"departureTime"`
			ArrivalTime   string `json:"arrivalTime"`
		} `json:"train"`
		Journey struct {
			DateOfJourney string `json:"dateOfJourney"` // dd-mm-yyyy
			From          struct {
				Name string `json:"name"`
			} `json:"from"`
			To struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"journey"`
	} `json:"data"`
}

// FetchPNR looks up a PNR and returns the parsed ticket. Returns
// (nil, nil) when the PNR cannot be resolved, so an unparsable ticket
// is a user prompt rather than an error.
func (c *Client) FetchPNR(pnr string) (*TicketInfo, error) {
	endpoint := fmt.Sprintf("%s/pnr/%s", c.apiURL, url.PathEscape(pnr))

	body, err := c.get(endpoint)
	if err != nil {
		return nil, err
	}

	var resp pnrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse PNR response: %w", err)
	}

	if !resp.Success {
		return nil, nil
	}

	data := resp.Data
	depTime := data.Train.DepartureTime
	if depTime == "" {
		depTime = "00:00"
	}
	arrTime := data.Train.ArrivalTime
	if arrTime == "" {
		arrTime = "23:59"
	}

	departure, err := parseJourneyTime(data.Journey.DateOfJourney, depTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse departure time: %w", err)
	}
	arrival, err := parseJourneyTime(data.Journey.DateOfJourney, arrTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arrival time: %w", err)
	}
	// Overnight trains arrive the day after they depart
	if arrival.Before(departure) {
		arrival = arrival.Add(24 * time.Hour)
	}

	return &TicketInfo{
		PNR:         data.PNR,
		TrainNumber: data.Train.Number,
		TrainName:   data.Train.Name,
		From:        data.Journey.From.Name,
		To:          data.Journey.To.Name,
		Departure:   departure,
		Arrival:     arrival,
	}, nil
}

// RouteStation is one stop in a live-running report, vendor shapes intact
type RouteStation struct {
	Station  string `json:"station"`
	Arr      string `json:"arr"`
	Dep      string `json:"dep"`
	Delay    string `json:"delay"`    // "On Time", "+15 min"
	Distance string `json:"distance"` // km from the previous stop, as text
	Platform string `json:"platform"`
	Status   string `json:"status"`  // completed, current, upcoming
	Current  string `json:"current"` // "true" on the train's current stop
}

// liveResponse mirrors the vendor live-running payload
type liveResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Data    []RouteStation `json:"data"`
}

// Progress is the normalized live position of a train relative to the
// traveler's destination
type Progress struct {
	CurrentStation      string  `json:"current_station"`
	NextStation         string  `json:"next_station"`
	StationsRemaining   int     `json:"stations_remaining"`
	DistanceRemainingKm float64 `json:"distance_remaining_km"`
	DelayMinutes        int     `json:"delay_minutes"`
}

// LiveStatus fetches where a train currently is and derives progress
// toward the given destination station. Returns (nil, nil) when the
// position cannot be determined (not yet departed, destination not on
// the route), never an error for "not available".
func (c *Client) LiveStatus(trainNumber, date, destinationStation string) (*Progress, error) {
	endpoint := fmt.Sprintf("%s/train/%s/live?date=%s", c.apiURL, url.PathEscape(trainNumber), url.QueryEscape(date))

	body, err := c.get(endpoint)
	if err != nil {
		return nil, err
	}

	var resp liveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse live status response: %w", err)
	}

	if !resp.Success || len(resp.Data) == 0 {
		return nil, nil
	}

	return ComputeProgress(resp.Data, destinationStation), nil
}

// ComputeProgress derives normalized progress from a station list.
// Returns nil when the current station or the destination is missing
// from the route.
func ComputeProgress(stations []RouteStation, destinationStation string) *Progress {
	currentIndex := -1
	for i, s := range stations {
		if s.Current == "true" {
			currentIndex = i
			break
		}
	}
	if currentIndex == -1 {
		return nil
	}

	destinationIndex := -1
	needle := strings.ToLower(destinationStation)
	for i, s := range stations {
		if strings.Contains(strings.ToLower(s.Station), needle) {
			destinationIndex = i
			break
		}
	}
	if destinationIndex == -1 {
		return nil
	}

	stationsRemaining := 0
	nextStation := "Destination"
	for i := currentIndex + 1; i <= destinationIndex && i < len(stations); i++ {
		if stations[i].Status != "upcoming" {
			continue
		}
		if stationsRemaining == 0 {
			nextStation = stations[i].Station
		}
		stationsRemaining++
	}

	var distanceRemaining float64
	for i := currentIndex; i <= destinationIndex && i < len(stations); i++ {
		if km, err := strconv.ParseFloat(strings.TrimSpace(stations[i].Distance), 64); err == nil {
			distanceRemaining += km
		}
	}

	return &Progress{
		CurrentStation:      stations[currentIndex].Station,
		NextStation:         nextStation,
		StationsRemaining:   stationsRemaining,
		DistanceRemainingKm: distanceRemaining,
		DelayMinutes:        ParseDelayMinutes(stations[currentIndex].Delay),
	}
}

var delayRegex = regexp.MustCompile(`\+?(\d+)`)

// ParseDelayMinutes extracts minutes from vendor delay strings like
// "+15 min" or "On Time"
func ParseDelayMinutes(delay string) int {
	match := delayRegex.FindStringSubmatch(delay)
	if match == nil {
		return 0
	}
	minutes, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return minutes
}

// FormatDate renders a journey date the way the vendor expects (dd-mm-yyyy)
func FormatDate(date time.Time) string {
	return date.Format("02-01-2006")
}

func parseJourneyTime(dateOfJourney, hhmm string) (time.Time, error) {
	return time.ParseInLocation("02-01-2006 15:04", dateOfJourney+" "+hhmm, time.Local)
}

func (c *Client) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("railway API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read railway API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("railway API returned status %d", resp.StatusCode)
	}

	return body, nil
}
