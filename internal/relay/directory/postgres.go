package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// PostgresStore reads driver records from the fleet database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetDriver loads one driver record by id.
func (s *PostgresStore) GetDriver(ctx context.Context, id domain.DriverID) (domain.DriverProfile, error) {
	const query = `SELECT id, name, phone, COALESCE(vehicle_assigned, '') FROM drivers WHERE id = $1`

	var profile domain.DriverProfile
	row := s.db.QueryRowContext(ctx, query, int64(id))
	if err := row.Scan(&profile.ID, &profile.Name, &profile.Phone, &profile.Vehicle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DriverProfile{}, domain.ErrDriverNotFound
		}
		return domain.DriverProfile{}, fmt.Errorf("select driver: %w", err)
	}
	return profile, nil
}
