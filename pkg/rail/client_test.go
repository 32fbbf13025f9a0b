package rail

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPNR(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/pnr/4521876390", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

			_, _ = w.Write([]byte(`{
				"success": true,
				"data": {
					"pnr": "4521876390",
					"train": {
						"number": "12951",
						"name": "Mumbai Rajdhani",
						"departureTime": "16:25",
						"arrivalTime": "08:35"
					},
					"journey": {
						"dateOfJourney": "15-07-2025",
						"from": {"name": "New Delhi"},
						"to": {"name": "Mumbai Central"}
					}
				}
			}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIURL: server.URL, APIKey: "test-key"})

		ticket, err := client.FetchPNR("4521876390")
		require.NoError(t, err)
		require.NotNil(t, ticket)
		assert.Equal(t, "4521876390", ticket.PNR)
		assert.Equal(t, "12951", ticket.TrainNumber)
		assert.Equal(t, "New Delhi", ticket.From)
		assert.Equal(t, "Mumbai Central", ticket.To)
		assert.Equal(t, 15, ticket.Departure.Day())

		// Arrival before departure on the clock means next day
		assert.True(t, ticket.Arrival.After(ticket.Departure))
		assert.Equal(t, 16, ticket.Arrival.Day())
	})

	t.Run("Unresolvable PNR", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error": "PNR not found"}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIURL: server.URL})

		ticket, err := client.FetchPNR("0000000000")
		require.NoError(t, err)
		assert.Nil(t, ticket)
	})

	t.Run("Server Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(Config{APIURL: server.URL})

		ticket, err := client.FetchPNR("4521876390")
		assert.Error(t, err)
		assert.Nil(t, ticket)
	})
}

func TestLiveStatus(t *testing.T) {
	t.Run("Derives Progress", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/train/12951/live", r.URL.Path)
			assert.Equal(t, "15-07-2025", r.URL.Query().Get("date"))

			_, _ = w.Write([]byte(`{
				"success": true,
				"data": [
					{"station": "New Delhi", "status": "completed", "distance": "0", "delay": "On Time"},
					{"station": "Kota Jn", "status": "current", "current": "true", "distance": "465", "delay": "+15 min"},
					{"station": "Vadodara Jn", "status": "upcoming", "distance": "529", "delay": ""},
					{"station": "Surat", "status": "upcoming", "distance": "129", "delay": ""},
					{"station": "Mumbai Central", "status": "upcoming", "distance": "263", "delay": ""}
				]
			}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIURL: server.URL})

		progress, err := client.LiveStatus("12951", "15-07-2025", "Mumbai Central")
		require.NoError(t, err)
		require.NotNil(t, progress)
		assert.Equal(t, "Kota Jn", progress.CurrentStation)
		assert.Equal(t, "Vadodara Jn", progress.NextStation)
		assert.Equal(t, 3, progress.StationsRemaining)
		assert.InDelta(t, 465+529+129+263, progress.DistanceRemainingKm, 0.01)
		assert.Equal(t, 15, progress.DelayMinutes)
	})

	t.Run("Not Available", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error": "train not on run"}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIURL: server.URL})

		progress, err := client.LiveStatus("12951", "15-07-2025", "Mumbai Central")
		require.NoError(t, err)
		assert.Nil(t, progress)
	})
}

func TestComputeProgress(t *testing.T) {
	route := []RouteStation{
		{Station: "New Delhi", Status: "completed", Distance: "0"},
		{Station: "Kota Jn", Status: "current", Current: "true", Distance: "465", Delay: "+20 min"},
		{Station: "Surat", Status: "upcoming", Distance: "658"},
		{Station: "Borivali", Status: "upcoming", Distance: "234"},
		{Station: "Mumbai Central", Status: "upcoming", Distance: "29"},
	}

	t.Run("Counts Remaining Stations And Distance", func(t *testing.T) {
		progress := ComputeProgress(route, "Mumbai Central")
		require.NotNil(t, progress)
		assert.Equal(t, "Kota Jn", progress.CurrentStation)
		assert.Equal(t, "Surat", progress.NextStation)
		assert.Equal(t, 3, progress.StationsRemaining)
		assert.InDelta(t, 465+658+234+29, progress.DistanceRemainingKm, 0.01)
		assert.Equal(t, 20, progress.DelayMinutes)
	})

	t.Run("Destination Match Is Case Insensitive", func(t *testing.T) {
		progress := ComputeProgress(route, "mumbai central")
		require.NotNil(t, progress)
		assert.Equal(t, 3, progress.StationsRemaining)
	})

	t.Run("Destination Not On Route", func(t *testing.T) {
		assert.Nil(t, ComputeProgress(route, "Chennai Central"))
	})

	t.Run("No Current Station", func(t *testing.T) {
		notDeparted := []RouteStation{
			{Station: "New Delhi", Status: "upcoming", Distance: "0"},
			{Station: "Mumbai Central", Status: "upcoming", Distance: "1384"},
		}
		assert.Nil(t, ComputeProgress(notDeparted, "Mumbai Central"))
	})

	t.Run("Nearly There", func(t *testing.T) {
		almost := []RouteStation{
			{Station: "Surat", Status: "completed", Distance: "658"},
			{Station: "Borivali", Status: "current", Current: "true", Distance: "234", Delay: "On Time"},
			{Station: "Mumbai Central", Status: "upcoming", Distance: "29"},
		}
		progress := ComputeProgress(almost, "Mumbai Central")
		require.NotNil(t, progress)
		assert.Equal(t, 1, progress.StationsRemaining)
		assert.Equal(t, "Mumbai Central", progress.NextStation)
		assert.InDelta(t, 263, progress.DistanceRemainingKm, 0.01)
		assert.Zero(t, progress.DelayMinutes)
	})
}

func TestParseDelayMinutes(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"+15 min", 15},
		{"15 min", 15},
		{"+5", 5},
		{"On Time", 0},
		{"", 0},
		{"Right Time", 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, ParseDelayMinutes(tc.input), "input %q", tc.input)
	}
}

func TestFormatDate(t *testing.T) {
	date := time.Date(2025, 7, 15, 16, 25, 0, 0, time.UTC)
	assert.Equal(t, "15-07-2025", FormatDate(date))
}

func TestParseJourneyTime(t *testing.T) {
	parsed, err := parseJourneyTime("15-07-2025", "16:25")
	require.NoError(t, err)
	assert.Equal(t, 2025, parsed.Year())
	assert.Equal(t, time.July, parsed.Month())
	assert.Equal(t, 15, parsed.Day())
	assert.Equal(t, 16, parsed.Hour())
	assert.Equal(t, 25, parsed.Minute())

	_, err = parseJourneyTime("garbage", "16:25")
	assert.Error(t, err)
}
