package ws

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// inboundMessage is the envelope clients send. Data stays raw until the
// event name tells us what shape to expect.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// locationUpdateData mirrors the locationUpdate event body. The driver id is
// kept raw because clients send it as a number or a string.
type locationUpdateData struct {
	DriverID  json.RawMessage `json:"driverId"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	Speed     float64         `json:"speed"`
}

// parseDriverRef accepts the forms clients use for a driver id: a bare
// number, a numeric string, or an object with a driverId field.
func parseDriverRef(raw json.RawMessage) (domain.DriverID, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing driver id")
	}
	var obj struct {
		DriverID json.RawMessage `json:"driverId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.DriverID) > 0 {
		raw = obj.DriverID
	}
	return parseScalarDriverID(raw)
}

func parseScalarDriverID(raw json.RawMessage) (domain.DriverID, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode driver id: %w", err)
	}
	var id int64
	switch val := v.(type) {
	case float64:
		id = int64(val)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse driver id %q: %w", val, err)
		}
		id = parsed
	default:
		return 0, fmt.Errorf("driver id has unsupported type %T", v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("driver id %d is not positive", id)
	}
	return domain.DriverID(id), nil
}

// parseLocationUpdate decodes a locationUpdate body into a sample. A driver
// id that fails to coerce yields a zero id; the engine rejects it as
// invalid, which matches the drop-and-log contract.
func parseLocationUpdate(raw json.RawMessage) (domain.LocationSample, error) {
	var body locationUpdateData
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.LocationSample{}, fmt.Errorf("decode location update: %w", err)
	}
	sample := domain.LocationSample{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Speed:     body.Speed,
	}
	if id, err := parseScalarDriverID(body.DriverID); err == nil {
		sample.DriverID = id
	}
	return sample, nil
}
