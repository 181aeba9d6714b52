package domain

import (
	"context"
	"errors"
	"time"
)

// DriverID identifies a driver across every relay subsystem.
type DriverID int64

// Valid reports whether the identifier can refer to a real driver.
func (id DriverID) Valid() bool { return id > 0 }

var ErrDriverNotFound = errors.New("driver not found")
var ErrInvalidSample = errors.New("invalid location sample")
var ErrNotIdentified = errors.New("connection not identified")

// DriverProfile is static driver metadata. It is a cache value only and is
// never written back to the directory store.
type DriverProfile struct {
	ID      DriverID
	Name    string
	Phone   string
	Vehicle string
}

// LocationSample is one inbound GPS reading. Latitude and longitude are
// pointers so a missing coordinate is distinguishable from zero.
type LocationSample struct {
	DriverID  DriverID
	Latitude  *float64
	Longitude *float64
	Speed     float64
}

// DriverInfo is the driver block embedded in every broadcast payload.
type DriverInfo struct {
	ID        DriverID `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	BusNumber string   `json:"busNumber"`
}

// OutboundPayload is the single wire format broadcast to topic subscribers
// and the admin-observer channel. The same bytes go to both.
type OutboundPayload struct {
	DriverInfo DriverInfo `json:"driverInfo"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Speed      float64    `json:"speed"`
	PlaceName  string     `json:"placeName"`
}

// Event is the envelope every channel speaks.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Event names shared by the transports.
const (
	EventDriverConnected = "driverConnected"
	EventLocationUpdate  = "locationUpdate"
	EventSubscribe       = "subscribeToDriver"
	EventUnsubscribe     = "unsubscribeFromDriver"
	EventDriverOffline   = "driverOffline"
)

// DirectoryStore reads driver records from the durable fleet store.
type DirectoryStore interface {
	GetDriver(ctx context.Context, id DriverID) (DriverProfile, error)
}

// Geocoder turns coordinates into a human-readable place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
