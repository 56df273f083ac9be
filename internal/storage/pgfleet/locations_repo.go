package pgfleet

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/geo"
	"github.com/openfleet/fleettrack/internal/models"
)

// RecordFix is the single-transaction persistence path for a device report:
// the vehicle's mirror columns and a fresh history row are written as one
// logical unit, so readers never see the two out of sync.
func (s *Storage) RecordFix(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error) {
	point := geo.NewPoint(fix.Longitude, fix.Latitude).String()
	ts := time.Now().UTC()
	if fix.Timestamp != nil {
		ts = fix.Timestamp.UTC()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
UPDATE vehicles
SET
  last_location = $2,
  last_updated = $3,
  status = $4,
  updated_at = now()
WHERE id = $1
`, vehicleID, point, ts, models.VehicleStatusOnline)
	if err != nil {
		return nil, errors.Wrap(err, "update vehicle mirror")
	}

	loc := &models.VehicleLocation{
		VehicleID: vehicleID,
		Location:  point,
		Speed:     fix.Speed,
		Heading:   fix.Heading,
		Timestamp: ts,
	}
	err = tx.QueryRow(ctx, `
INSERT INTO vehicle_locations (vehicle_id, location, speed, heading, timestamp)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, vehicleID, point, fix.Speed, fix.Heading, ts).Scan(&loc.ID)
	if err != nil {
		return nil, errors.Wrap(err, "insert vehicle location")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return loc, nil
}

// UpsertLatestLocation is the broker-path persistence strategy: the most
// recent history row is updated in place when one exists, otherwise a first
// row is inserted. The vehicle mirror is refreshed in the same transaction.
func (s *Storage) UpsertLatestLocation(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error) {
	point := geo.NewPoint(fix.Longitude, fix.Latitude).String()
	ts := time.Now().UTC()
	if fix.Timestamp != nil {
		ts = fix.Timestamp.UTC()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingID uint64
	hasExisting := true
	err = tx.QueryRow(ctx, `
SELECT id FROM vehicle_locations
WHERE vehicle_id = $1
ORDER BY timestamp DESC
LIMIT 1
`, vehicleID).Scan(&existingID)
	if err == pgx.ErrNoRows {
		hasExisting = false
	} else if err != nil {
		return nil, errors.Wrap(err, "select latest location")
	}

	loc := &models.VehicleLocation{
		VehicleID: vehicleID,
		Location:  point,
		Speed:     fix.Speed,
		Heading:   fix.Heading,
		Timestamp: ts,
	}
	if hasExisting {
		loc.ID = existingID
		_, err = tx.Exec(ctx, `
UPDATE vehicle_locations
SET location = $2, speed = $3, heading = $4, timestamp = $5
WHERE id = $1
`, existingID, point, fix.Speed, fix.Heading, ts)
		if err != nil {
			return nil, errors.Wrap(err, "update latest location")
		}
	} else {
		err = tx.QueryRow(ctx, `
INSERT INTO vehicle_locations (vehicle_id, location, speed, heading, timestamp)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, vehicleID, point, fix.Speed, fix.Heading, ts).Scan(&loc.ID)
		if err != nil {
			return nil, errors.Wrap(err, "insert first location")
		}
	}

	_, err = tx.Exec(ctx, `
UPDATE vehicles
SET
  last_location = $2,
  last_updated = $3,
  status = $4,
  updated_at = now()
WHERE id = $1
`, vehicleID, point, ts, models.VehicleStatusOnline)
	if err != nil {
		return nil, errors.Wrap(err, "update vehicle mirror")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return loc, nil
}

// LatestLocation returns (nil, nil) for a vehicle with no history yet.
func (s *Storage) LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	var loc models.VehicleLocation
	var speed, heading *float64
	err := s.db.QueryRow(ctx, `
SELECT id, vehicle_id, location, speed, heading, timestamp
FROM vehicle_locations
WHERE vehicle_id = $1
ORDER BY timestamp DESC
LIMIT 1
`, vehicleID).Scan(&loc.ID, &loc.VehicleID, &loc.Location, &speed, &heading, &loc.Timestamp)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest location")
	}
	loc.Speed = speed
	loc.Heading = heading
	return &loc, nil
}
