package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTravelInfoJson(t *testing.T) {
	t.Run("Extra keys survive the round trip", func(t *testing.T) {
		in := TravelInfo{
			TravelTimeMinutes: 25,
			DistanceMeters:    4200,
			Extra:             map[string]interface{}{"mode": "transit"},
		}

		b, err := json.Marshal(in)
		require.NoError(t, err, "Expected Marshal to not return an error")
		assert.JSONEq(t, `{"travel_time_minutes": 25, "distance_meters": 4200, "mode": "transit"}`, string(b))

		var out TravelInfo
		require.NoError(t, json.Unmarshal(b, &out), "Expected Unmarshal to not return an error")
		assert.Equal(t, 25, out.TravelTimeMinutes)
		assert.Equal(t, float64(4200), out.DistanceMeters)
		assert.Equal(t, map[string]interface{}{"mode": "transit"}, out.Extra)
	})

	t.Run("Known keys in Extra do not shadow the typed fields", func(t *testing.T) {
		in := TravelInfo{
			TravelTimeMinutes: 10,
			Extra:             map[string]interface{}{"travel_time_minutes": 99},
		}

		b, err := json.Marshal(in)
		require.NoError(t, err, "Expected Marshal to not return an error")

		var out TravelInfo
		require.NoError(t, json.Unmarshal(b, &out), "Expected Unmarshal to not return an error")
		assert.Equal(t, 10, out.TravelTimeMinutes, "Expected the typed field to win")
	})

	t.Run("Scan nil clears the value", func(t *testing.T) {
		info := TravelInfo{TravelTimeMinutes: 25}
		require.NoError(t, info.Scan(nil), "Expected Scan to not return an error")
		assert.Equal(t, TravelInfo{}, info)
	})

	t.Run("Scan rejects non-byte values", func(t *testing.T) {
		var info TravelInfo
		err := info.Scan(42)
		assert.Error(t, err, "Expected an error for a non-byte value")
	})

	t.Run("Value and Scan round trip", func(t *testing.T) {
		in := TravelInfo{TravelTimeMinutes: 7, DistanceMeters: 900}

		v, err := in.Value()
		require.NoError(t, err, "Expected Value to not return an error")

		var out TravelInfo
		require.NoError(t, out.Scan(v), "Expected Scan to not return an error")
		assert.Equal(t, in, out)
	})
}

func TestSourceData(t *testing.T) {
	t.Run("Schedule round trips through JSON", func(t *testing.T) {
		schedule := []ItemSchedule{
			{Title: "Movie A", Genre: "Drama", Showtimes: []string{"18:00", "20:30"}},
			{Title: "Movie B", Showtimes: []string{"21:00"}},
		}
		data := NewSourceData(schedule)

		v, err := data.Value()
		require.NoError(t, err, "Expected Value to not return an error")

		var out SourceData
		require.NoError(t, out.Scan(v), "Expected Scan to not return an error")

		decoded, err := out.Schedule()
		require.NoError(t, err, "Expected Schedule to not return an error")
		assert.Equal(t, schedule, decoded)

		titles, err := out.Titles()
		require.NoError(t, err, "Expected Titles to not return an error")
		assert.Equal(t, []string{"Movie A", "Movie B"}, titles)
	})

	t.Run("Typed schedule is returned directly", func(t *testing.T) {
		schedule := []ItemSchedule{{Title: "Movie A"}}
		data := NewSourceData(schedule)

		decoded, err := data.Schedule()
		require.NoError(t, err, "Expected Schedule to not return an error")
		assert.Equal(t, schedule, decoded)
	})

	t.Run("Missing schedule yields an empty slice", func(t *testing.T) {
		data := SourceData{"reviews": []interface{}{"great place"}}

		decoded, err := data.Schedule()
		require.NoError(t, err, "Expected Schedule to not return an error")
		assert.Empty(t, decoded)
	})
}
