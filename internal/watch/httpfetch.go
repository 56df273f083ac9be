package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openfleet/fleettrack/internal/models"
)

// ErrNoLocation is returned by a Fetcher when the vehicle has no stored
// location yet.
var ErrNoLocation = errors.New("no location for vehicle")

// HTTPFetcher reads the latest location from the fleet HTTP API.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFetcher) LatestLocation(ctx context.Context, vehicleID string) (*models.VehicleLocation, error) {
	url := fmt.Sprintf("%s/vehicle_locations/%s", f.base, vehicleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch latest location")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoLocation
	default:
		return nil, errors.Errorf("fetch latest location: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID        uint64    `json:"id"`
		VehicleID string    `json:"vehicle_id"`
		Location  string    `json:"location"`
		Speed     *float64  `json:"speed"`
		Heading   *float64  `json:"heading"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode latest location")
	}
	return &models.VehicleLocation{
		ID:        body.ID,
		VehicleID: body.VehicleID,
		Location:  body.Location,
		Speed:     body.Speed,
		Heading:   body.Heading,
		Timestamp: body.Timestamp,
	}, nil
}
