package track

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/fleetrelay/internal/relay/domain"
)

const defaultLocationKey = "fleet:locs"

var errInvalidGeoResult = errors.New("invalid geo search result")

// RedisLocationIndex keeps each bus's last reported position in a Redis GEO
// set so ops tooling can query the fleet without touching the relay. Updates
// are best effort and last-writer-wins per driver.
type RedisLocationIndex struct {
	client redis.Cmdable
	key    string
}

// NewRedisLocationIndex constructs the index.
func NewRedisLocationIndex(client redis.Cmdable, key string) *RedisLocationIndex {
	if key == "" {
		key = defaultLocationKey
	}
	return &RedisLocationIndex{client: client, key: key}
}

// Update stores the driver's latest position.
func (r *RedisLocationIndex) Update(ctx context.Context, id domain.DriverID, lat, lon float64) error {
	if r == nil || r.client == nil {
		return nil
	}
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      strconv.FormatInt(int64(id), 10),
		Longitude: lon,
		Latitude:  lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geoadd: %w", err)
	}
	return nil
}

// Nearby returns up to limit driver ids sorted by distance to the point.
func (r *RedisLocationIndex) Nearby(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]domain.DriverID, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redis location index not configured")
	}

	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
	}

	results, err := r.client.GeoSearchLocation(ctx, r.key, query).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geosearch: %w", err)
	}

	ids := make([]domain.DriverID, 0, len(results))
	for _, res := range results {
		id, err := strconv.ParseInt(res.Name, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errInvalidGeoResult, res.Name)
		}
		ids = append(ids, domain.DriverID(id))
	}
	return ids, nil
}
