package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/broker/messages"
	"github.com/openfleet/fleettrack/internal/cache"
	"github.com/openfleet/fleettrack/internal/models"
)

type Repository interface {
	CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, userID, name string) (string, error)
	ListVehiclesByUser(ctx context.Context, userID string) ([]*models.Vehicle, error)
	FindVehicleByDeviceID(ctx context.Context, deviceID string) (*models.Vehicle, error)
	SetVehicleStatus(ctx context.Context, deviceID, status string) error
	RecordFix(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error)
	UpsertLatestLocation(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error)
	LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error)
}

type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNoLocation      = errors.New("no location for vehicle")
)

type Service struct {
	repo      Repository
	cache     cache.BytesCache
	producer  Producer
	latestTTL time.Duration
}

// New wires the service. cache and producer may be nil; both are best-effort
// collaborators.
func New(repo Repository, c cache.BytesCache, producer Producer, latestTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, producer: producer, latestTTL: latestTTL}
}

func (s *Service) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	if in.UserID == "" {
		return nil, errors.New("userId is required")
	}
	if in.Name == "" {
		return nil, errors.New("vehicleNumber is required")
	}
	if in.DeviceID == "" {
		return nil, errors.New("gpsCode is required")
	}
	return s.repo.CreateVehicle(ctx, in)
}

func (s *Service) DeleteVehicle(ctx context.Context, userID, name string) error {
	if userID == "" || name == "" {
		return errors.New("userId and vehicleNumber are required")
	}
	vehicleID, err := s.repo.DeleteVehicle(ctx, userID, name)
	if err != nil {
		return err
	}
	if vehicleID == "" {
		return ErrVehicleNotFound
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, latestKey(vehicleID))
	}
	return nil
}

func (s *Service) ListVehicles(ctx context.Context, userID string) ([]*models.Vehicle, error) {
	if userID == "" {
		return nil, errors.New("userId is required")
	}
	return s.repo.ListVehiclesByUser(ctx, userID)
}

// LatestLocation serves the poll read path. The cache is best-effort: a miss
// or a broken entry just falls through to the store.
func (s *Service) LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	if vehicleID == "" {
		return nil, errors.New("vehicleId is required")
	}

	if s.cache != nil && s.latestTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, latestKey(vehicleID)); err == nil && ok {
			var loc models.VehicleLocation
			if json.Unmarshal(b, &loc) == nil {
				return &loc, nil
			}
		}
	}

	loc, err := s.repo.LatestLocation(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrNoLocation
	}
	s.cacheLatest(ctx, loc)
	return loc, nil
}

// RecordFix is the WebSocket ingestion path: a validated report from a
// registered device becomes one appended history row plus the vehicle mirror
// update, in a single store transaction.
func (s *Service) RecordFix(ctx context.Context, deviceID string, fix models.LocationFix) (*models.VehicleLocation, error) {
	v, err := s.repo.FindVehicleByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVehicleNotFound
	}

	loc, err := s.repo.RecordFix(ctx, v.ID, fix)
	if err != nil {
		return nil, err
	}

	s.cacheLatest(ctx, loc)
	s.publishUpdated(ctx, v, loc)
	return loc, nil
}

// ApplyBridgeFix is the broker ingestion path. It keeps the original bridge
// semantics: explicit existence check, then latest-row update or first-row
// insert.
func (s *Service) ApplyBridgeFix(ctx context.Context, msg messages.LocationReceived) error {
	if msg.DeviceID == "" {
		return errors.New("device_id is required")
	}

	v, err := s.repo.FindVehicleByDeviceID(ctx, msg.DeviceID)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrVehicleNotFound
	}

	fix := models.LocationFix{
		Latitude:  msg.Latitude,
		Longitude: msg.Longitude,
		Speed:     msg.Speed,
		Heading:   msg.Heading,
		Timestamp: msg.Timestamp,
	}
	if fix.Timestamp == nil && !msg.ReceivedAt.IsZero() {
		t := msg.ReceivedAt
		fix.Timestamp = &t
	}

	loc, err := s.repo.UpsertLatestLocation(ctx, v.ID, fix)
	if err != nil {
		return err
	}

	s.cacheLatest(ctx, loc)
	s.publishUpdated(ctx, v, loc)
	return nil
}

// SetVehicleStatus is a one-way command: store failures are logged and
// swallowed so a status flip can never take down the triggering connection.
func (s *Service) SetVehicleStatus(ctx context.Context, deviceID, status string) {
	if err := s.repo.SetVehicleStatus(ctx, deviceID, status); err != nil {
		slog.Error("set vehicle status", "device_id", deviceID, "status", status, "error", err.Error())
	}
}

func (s *Service) cacheLatest(ctx context.Context, loc *models.VehicleLocation) {
	if s.cache == nil || s.latestTTL <= 0 {
		return
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, latestKey(loc.VehicleID), b, s.latestTTL); err != nil {
		slog.Warn("cache latest location", "vehicle_id", loc.VehicleID, "error", err.Error())
	}
}

func (s *Service) publishUpdated(ctx context.Context, v *models.Vehicle, loc *models.VehicleLocation) {
	if s.producer == nil {
		return
	}
	b, err := json.Marshal(messages.LocationUpdated{
		VehicleID: v.ID,
		DeviceID:  v.DeviceID,
		Location:  loc.Location,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Timestamp: loc.Timestamp,
	})
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, []byte(v.DeviceID), b); err != nil {
		slog.Warn("publish location.updated", "device_id", v.DeviceID, "error", err.Error())
	}
}

func latestKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:latest", vehicleID)
}
