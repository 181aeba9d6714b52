package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/fleetrelay/internal/relay/domain"
)

func TestParseDriverRefForms(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want domain.DriverID
		ok   bool
	}{
		{"bare number", `42`, 42, true},
		{"numeric string", `"42"`, 42, true},
		{"padded string", `" 42 "`, 42, true},
		{"object with number", `{"driverId":42}`, 42, true},
		{"object with string", `{"driverId":"42"}`, 42, true},
		{"zero", `0`, 0, false},
		{"negative", `-3`, 0, false},
		{"non-numeric string", `"abc"`, 0, false},
		{"null", `null`, 0, false},
		{"empty object", `{}`, 0, false},
		{"boolean", `true`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDriverRef(json.RawMessage(tc.raw))
			if tc.ok {
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseLocationUpdate(t *testing.T) {
	raw := json.RawMessage(`{"driverId":42,"latitude":12.9,"longitude":77.6,"speed":30}`)
	sample, err := parseLocationUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, domain.DriverID(42), sample.DriverID)
	require.NotNil(t, sample.Latitude)
	require.Equal(t, 12.9, *sample.Latitude)
	require.NotNil(t, sample.Longitude)
	require.Equal(t, 77.6, *sample.Longitude)
	require.Equal(t, 30.0, sample.Speed)
}

func TestParseLocationUpdateStringDriverID(t *testing.T) {
	raw := json.RawMessage(`{"driverId":"42","latitude":12.9,"longitude":77.6}`)
	sample, err := parseLocationUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, domain.DriverID(42), sample.DriverID)
	require.Equal(t, 0.0, sample.Speed)
}

func TestParseLocationUpdateMissingCoordinates(t *testing.T) {
	raw := json.RawMessage(`{"driverId":42,"latitude":12.9}`)
	sample, err := parseLocationUpdate(raw)
	require.NoError(t, err)
	require.Nil(t, sample.Longitude)
}

func TestParseLocationUpdateBadDriverIDYieldsZero(t *testing.T) {
	raw := json.RawMessage(`{"driverId":"oops","latitude":12.9,"longitude":77.6}`)
	sample, err := parseLocationUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, domain.DriverID(0), sample.DriverID)
}

func TestParseLocationUpdateMalformedBody(t *testing.T) {
	_, err := parseLocationUpdate(json.RawMessage(`"not an object"`))
	require.Error(t, err)
}
