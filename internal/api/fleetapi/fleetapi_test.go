package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/internal/models"
	"github.com/openfleet/fleettrack/internal/services/fleet"
)

type fakeService struct {
	vehicles  map[string][]*models.Vehicle
	latest    map[string]*models.VehicleLocation
	created   []models.VehicleCreateInput
	deleted   []string
	createErr error
	deleteErr error
	listErr   error
}

func newFakeService() *fakeService {
	return &fakeService{
		vehicles: map[string][]*models.Vehicle{},
		latest:   map[string]*models.VehicleLocation{},
	}
}

func (f *fakeService) CreateVehicle(_ context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &models.Vehicle{ID: "veh-1", UserID: in.UserID, Name: in.Name, DeviceID: in.DeviceID, Status: models.VehicleStatusOffline}, nil
}

func (f *fakeService) DeleteVehicle(_ context.Context, userID, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, userID+"/"+name)
	return nil
}

func (f *fakeService) ListVehicles(_ context.Context, userID string) ([]*models.Vehicle, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.vehicles[userID], nil
}

func (f *fakeService) LatestLocation(_ context.Context, vehicleID string) (*models.VehicleLocation, error) {
	loc, ok := f.latest[vehicleID]
	if !ok {
		return nil, fleet.ErrNoLocation
	}
	return loc, nil
}

func newTestServer(svc *fakeService) *httptest.Server {
	return httptest.NewServer(New(svc).Routes())
}

func TestFleetAPI_Health(t *testing.T) {
	srv := newTestServer(newFakeService())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFleetAPI_ListVehicles(t *testing.T) {
	svc := newFakeService()
	now := time.Now().UTC().Truncate(time.Second)
	loc := "(85.33911,27.6558)"
	svc.vehicles["user-1"] = []*models.Vehicle{{
		ID:           "veh-1",
		UserID:       "user-1",
		Name:         "KA-01-1234",
		DeviceID:     "dev-1",
		LastLocation: &loc,
		LastUpdated:  &now,
		Status:       models.VehicleStatusOnline,
	}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vehicles/user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	require.Equal(t, "veh-1", out[0]["id"])
	require.Equal(t, "(85.33911,27.6558)", out[0]["last_location"])
	require.Equal(t, "online", out[0]["status"])
}

func TestFleetAPI_ListVehiclesEmpty(t *testing.T) {
	srv := newTestServer(newFakeService())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vehicles/user-nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Empty(t, out)
}

func TestFleetAPI_CreateVehicle(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(svc)
	defer srv.Close()

	body := `{"userId":"user-1","vehicleNumber":"KA-01-1234","gpsCode":"dev-1"}`
	resp, err := http.Post(srv.URL+"/vehicles", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, svc.created, 1)
	require.Equal(t, "dev-1", svc.created[0].DeviceID)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "veh-1", out["id"])
}

func TestFleetAPI_CreateVehicleMissingFields(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/vehicles", "application/json", bytes.NewBufferString(`{"userId":"user-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.created)
}

func TestFleetAPI_DeleteVehicle(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/vehicles",
		bytes.NewBufferString(`{"userId":"user-1","vehicleNumber":"KA-01-1234"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"user-1/KA-01-1234"}, svc.deleted)
}

func TestFleetAPI_DeleteVehicleNotFound(t *testing.T) {
	svc := newFakeService()
	svc.deleteErr = fleet.ErrVehicleNotFound
	srv := newTestServer(svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/vehicles",
		bytes.NewBufferString(`{"userId":"user-1","vehicleNumber":"missing"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFleetAPI_LatestLocation(t *testing.T) {
	svc := newFakeService()
	speed := 42.5
	svc.latest["veh-1"] = &models.VehicleLocation{
		ID:        7,
		VehicleID: "veh-1",
		Location:  "(85.33911,27.6558)",
		Speed:     &speed,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vehicle_locations/veh-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "(85.33911,27.6558)", out["location"])
	require.Equal(t, 42.5, out["speed"])
	require.Equal(t, "veh-1", out["vehicle_id"])
}

func TestFleetAPI_LatestLocationNotFound(t *testing.T) {
	srv := newTestServer(newFakeService())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vehicle_locations/veh-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "No location found for this vehicle", out["message"])
}

func TestFleetAPI_ListVehiclesStoreFailure(t *testing.T) {
	svc := newFakeService()
	svc.listErr = errors.New("db down")
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vehicles/user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
