package fleetapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/models"
	"github.com/openfleet/fleettrack/internal/services/fleet"
)

// Service is the slice of the fleet service the HTTP surface needs.
type Service interface {
	CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, userID, name string) error
	ListVehicles(ctx context.Context, userID string) ([]*models.Vehicle, error)
	LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error)
}

type FleetAPI struct {
	svc Service
}

func New(svc Service) *FleetAPI {
	return &FleetAPI{svc: svc}
}

// Routes mounts the JSON API onto a fresh chi router.
func (a *FleetAPI) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/vehicles/{userId}", a.listVehicles)
	r.Post("/vehicles", a.createVehicle)
	r.Delete("/vehicles", a.deleteVehicle)
	r.Get("/vehicle_locations/{vehicleId}", a.latestLocation)

	return r
}

type vehicleResponse struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	DeviceID     string     `json:"device_id"`
	LastLocation *string    `json:"last_location"`
	LastUpdated  *time.Time `json:"last_updated"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type locationResponse struct {
	ID        uint64    `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	Location  string    `json:"location"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

type createVehicleRequest struct {
	UserID        string `json:"userId"`
	VehicleNumber string `json:"vehicleNumber"`
	GPSCode       string `json:"gpsCode"`
}

type deleteVehicleRequest struct {
	UserID        string `json:"userId"`
	VehicleNumber string `json:"vehicleNumber"`
}

func (a *FleetAPI) listVehicles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	vs, err := a.svc.ListVehicles(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch vehicles")
		slog.Error("list vehicles failed", "userId", userID, "err", err)
		return
	}
	out := make([]vehicleResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVehicleResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *FleetAPI) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req createVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.VehicleNumber == "" || req.GPSCode == "" {
		writeError(w, http.StatusBadRequest, "userId, vehicleNumber and gpsCode are required")
		return
	}
	v, err := a.svc.CreateVehicle(r.Context(), models.VehicleCreateInput{
		UserID:   req.UserID,
		Name:     req.VehicleNumber,
		DeviceID: req.GPSCode,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add vehicle")
		slog.Error("create vehicle failed", "userId", req.UserID, "err", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleResponse(v))
}

func (a *FleetAPI) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	var req deleteVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.VehicleNumber == "" {
		writeError(w, http.StatusBadRequest, "userId and vehicleNumber are required")
		return
	}
	if err := a.svc.DeleteVehicle(r.Context(), req.UserID, req.VehicleNumber); err != nil {
		if errors.Is(err, fleet.ErrVehicleNotFound) {
			writeError(w, http.StatusNotFound, "Vehicle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete vehicle")
		slog.Error("delete vehicle failed", "userId", req.UserID, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Vehicle deleted successfully"})
}

func (a *FleetAPI) latestLocation(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleId")
	loc, err := a.svc.LatestLocation(r.Context(), vehicleID)
	if err != nil {
		if errors.Is(err, fleet.ErrNoLocation) {
			writeError(w, http.StatusNotFound, "No location found for this vehicle")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch location")
		slog.Error("latest location failed", "vehicleId", vehicleID, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, locationResponse{
		ID:        loc.ID,
		VehicleID: loc.VehicleID,
		Location:  loc.Location,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Timestamp: loc.Timestamp,
	})
}

func toVehicleResponse(v *models.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:           v.ID,
		UserID:       v.UserID,
		Name:         v.Name,
		DeviceID:     v.DeviceID,
		LastLocation: v.LastLocation,
		LastUpdated:  v.LastUpdated,
		Status:       v.Status,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
