package pgfleet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/models"
)

func (s *Storage) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	now := time.Now().UTC()
	v := &models.Vehicle{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      in.Name,
		DeviceID:  in.DeviceID,
		Status:    models.VehicleStatusOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO vehicles (id, user_id, name, device_id, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
`, v.ID, v.UserID, v.Name, v.DeviceID, v.Status, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert vehicle")
	}
	return v, nil
}

// DeleteVehicle removes the user's vehicle and, via the FK cascade, its
// location history. Returns the removed vehicle id, or "" when no such
// vehicle exists.
func (s *Storage) DeleteVehicle(ctx context.Context, userID, name string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
DELETE FROM vehicles WHERE user_id = $1 AND name = $2 RETURNING id
`, userID, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "delete vehicle")
	}
	return id, nil
}

func (s *Storage) ListVehiclesByUser(ctx context.Context, userID string) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, user_id, name, device_id,
  last_location, last_updated, status,
  created_at, updated_at
FROM vehicles
WHERE user_id = $1
ORDER BY created_at
`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicles")
	}
	defer rows.Close()

	out := []*models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// FindVehicleByDeviceID returns (nil, nil) when no vehicle carries the device.
func (s *Storage) FindVehicleByDeviceID(ctx context.Context, deviceID string) (*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, user_id, name, device_id,
  last_location, last_updated, status,
  created_at, updated_at
FROM vehicles
WHERE device_id = $1
`, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle by device")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return scanVehicle(rows)
}

func (s *Storage) SetVehicleStatus(ctx context.Context, deviceID, status string) error {
	_, err := s.db.Exec(ctx, `
UPDATE vehicles SET status = $2, updated_at = now() WHERE device_id = $1
`, deviceID, status)
	return errors.Wrap(err, "update vehicle status")
}

func scanVehicle(rows pgx.Rows) (*models.Vehicle, error) {
	var v models.Vehicle
	var lastLocation *string
	var lastUpdated *time.Time
	if err := rows.Scan(
		&v.ID, &v.UserID, &v.Name, &v.DeviceID,
		&lastLocation, &lastUpdated, &v.Status,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan vehicle")
	}
	v.LastLocation = lastLocation
	v.LastUpdated = lastUpdated
	return &v, nil
}
