package fleet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/internal/broker/messages"
	"github.com/openfleet/fleettrack/internal/models"
)

type fakeRepo struct {
	vehiclesByDevice map[string]*models.Vehicle

	recordedVehicleID string
	recordedFix       models.LocationFix
	recordOut         *models.VehicleLocation
	recordErr         error

	upsertVehicleID string
	upsertFix       models.LocationFix
	upsertOut       *models.VehicleLocation

	latestOut *models.VehicleLocation
	latestErr error

	statusDevice string
	status       string
	statusErr    error

	deletedID string
}

func (f *fakeRepo) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	return &models.Vehicle{ID: "v-1", UserID: in.UserID, Name: in.Name, DeviceID: in.DeviceID}, nil
}
func (f *fakeRepo) DeleteVehicle(ctx context.Context, userID, name string) (string, error) {
	return f.deletedID, nil
}
func (f *fakeRepo) ListVehiclesByUser(ctx context.Context, userID string) ([]*models.Vehicle, error) {
	return nil, nil
}
func (f *fakeRepo) FindVehicleByDeviceID(ctx context.Context, deviceID string) (*models.Vehicle, error) {
	return f.vehiclesByDevice[deviceID], nil
}
func (f *fakeRepo) SetVehicleStatus(ctx context.Context, deviceID, status string) error {
	f.statusDevice = deviceID
	f.status = status
	return f.statusErr
}
func (f *fakeRepo) RecordFix(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error) {
	f.recordedVehicleID = vehicleID
	f.recordedFix = fix
	return f.recordOut, f.recordErr
}
func (f *fakeRepo) UpsertLatestLocation(ctx context.Context, vehicleID string, fix models.LocationFix) (*models.VehicleLocation, error) {
	f.upsertVehicleID = vehicleID
	f.upsertFix = fix
	return f.upsertOut, nil
}
func (f *fakeRepo) LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	return f.latestOut, f.latestErr
}

type fakeCache struct {
	m map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

type fakeProducer struct {
	keys   [][]byte
	values [][]byte
}

func (p *fakeProducer) Publish(ctx context.Context, key, value []byte) error {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func TestRecordFix_UnknownDevice(t *testing.T) {
	repo := &fakeRepo{vehiclesByDevice: map[string]*models.Vehicle{}}
	prod := &fakeProducer{}
	svc := New(repo, newFakeCache(), prod, time.Minute)

	_, err := svc.RecordFix(context.Background(), "ghost", models.LocationFix{Latitude: 1, Longitude: 2})
	require.ErrorIs(t, errors.Cause(err), ErrVehicleNotFound)
	require.Empty(t, repo.recordedVehicleID)
	require.Empty(t, prod.values)
}

func TestRecordFix_PersistsCachesAndPublishes(t *testing.T) {
	speed := 12.5
	loc := &models.VehicleLocation{
		ID:        7,
		VehicleID: "v-1",
		Location:  "(85.33911,27.6558)",
		Speed:     &speed,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	repo := &fakeRepo{
		vehiclesByDevice: map[string]*models.Vehicle{
			"dev-1": {ID: "v-1", DeviceID: "dev-1"},
		},
		recordOut: loc,
	}
	c := newFakeCache()
	prod := &fakeProducer{}
	svc := New(repo, c, prod, time.Minute)

	got, err := svc.RecordFix(context.Background(), "dev-1", models.LocationFix{
		Latitude: 27.6558, Longitude: 85.33911, Speed: &speed,
	})
	require.NoError(t, err)
	require.Equal(t, loc, got)
	require.Equal(t, "v-1", repo.recordedVehicleID)

	// Cache holds the fresh row.
	b, ok := c.m["vehicle:v-1:latest"]
	require.True(t, ok)
	var cached models.VehicleLocation
	require.NoError(t, json.Unmarshal(b, &cached))
	require.Equal(t, loc.Location, cached.Location)

	// One location.updated event went out, keyed by device.
	require.Len(t, prod.values, 1)
	require.Equal(t, []byte("dev-1"), prod.keys[0])
	var ev messages.LocationUpdated
	require.NoError(t, json.Unmarshal(prod.values[0], &ev))
	require.Equal(t, "v-1", ev.VehicleID)
	require.Equal(t, loc.Location, ev.Location)
}

func TestLatestLocation_CacheHitSkipsStore(t *testing.T) {
	repo := &fakeRepo{latestErr: errors.New("store must not be hit")}
	c := newFakeCache()
	loc := models.VehicleLocation{ID: 1, VehicleID: "v-1", Location: "(1,2)", Timestamp: time.Now().UTC()}
	b, _ := json.Marshal(loc)
	c.m["vehicle:v-1:latest"] = b

	svc := New(repo, c, nil, time.Minute)
	got, err := svc.LatestLocation(context.Background(), "v-1")
	require.NoError(t, err)
	require.Equal(t, loc.Location, got.Location)
}

func TestLatestLocation_NoHistory(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, nil, nil, 0)
	_, err := svc.LatestLocation(context.Background(), "v-1")
	require.ErrorIs(t, errors.Cause(err), ErrNoLocation)
}

func TestApplyBridgeFix_UsesUpsertStrategy(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		vehiclesByDevice: map[string]*models.Vehicle{
			"dev-1": {ID: "v-1", DeviceID: "dev-1"},
		},
		upsertOut: &models.VehicleLocation{ID: 1, VehicleID: "v-1", Location: "(2,1)", Timestamp: ts},
	}
	svc := New(repo, nil, nil, 0)

	err := svc.ApplyBridgeFix(context.Background(), messages.LocationReceived{
		DeviceID:  "dev-1",
		Latitude:  1,
		Longitude: 2,
		Timestamp: &ts,
	})
	require.NoError(t, err)
	require.Equal(t, "v-1", repo.upsertVehicleID)
	require.NotNil(t, repo.upsertFix.Timestamp)
	require.Equal(t, ts, *repo.upsertFix.Timestamp)
}

func TestApplyBridgeFix_FallsBackToReceivedAt(t *testing.T) {
	rc := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		vehiclesByDevice: map[string]*models.Vehicle{
			"dev-1": {ID: "v-1", DeviceID: "dev-1"},
		},
		upsertOut: &models.VehicleLocation{ID: 1, VehicleID: "v-1", Location: "(2,1)", Timestamp: rc},
	}
	svc := New(repo, nil, nil, 0)

	err := svc.ApplyBridgeFix(context.Background(), messages.LocationReceived{
		DeviceID:   "dev-1",
		Latitude:   1,
		Longitude:  2,
		ReceivedAt: rc,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.upsertFix.Timestamp)
	require.Equal(t, rc, *repo.upsertFix.Timestamp)
}

func TestSetVehicleStatus_SwallowsFailure(t *testing.T) {
	repo := &fakeRepo{statusErr: errors.New("store down")}
	svc := New(repo, nil, nil, 0)

	// Must not panic or propagate.
	svc.SetVehicleStatus(context.Background(), "dev-1", models.VehicleStatusOffline)
	require.Equal(t, "dev-1", repo.statusDevice)
	require.Equal(t, models.VehicleStatusOffline, repo.status)
}

func TestDeleteVehicle_NotFound(t *testing.T) {
	repo := &fakeRepo{deletedID: ""}
	svc := New(repo, nil, nil, 0)
	err := svc.DeleteVehicle(context.Background(), "user-1", "ghost")
	require.ErrorIs(t, errors.Cause(err), ErrVehicleNotFound)
}

func TestDeleteVehicle_InvalidatesCache(t *testing.T) {
	repo := &fakeRepo{deletedID: "v-1"}
	c := newFakeCache()
	c.m["vehicle:v-1:latest"] = []byte("{}")
	svc := New(repo, c, nil, time.Minute)

	require.NoError(t, svc.DeleteVehicle(context.Background(), "user-1", "car"))
	_, ok := c.m["vehicle:v-1:latest"]
	require.False(t, ok)
}

func TestCreateVehicle_Validation(t *testing.T) {
	svc := New(&fakeRepo{}, nil, nil, 0)
	_, err := svc.CreateVehicle(context.Background(), models.VehicleCreateInput{Name: "n", DeviceID: "d"})
	require.Error(t, err)
	_, err = svc.CreateVehicle(context.Background(), models.VehicleCreateInput{UserID: "u", DeviceID: "d"})
	require.Error(t, err)
	_, err = svc.CreateVehicle(context.Background(), models.VehicleCreateInput{UserID: "u", Name: "n"})
	require.Error(t, err)
}
