package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
)

const defaultIPAPIURL = "http://ip-api.com/json"

// IPAPI approximates the device position from its public IP address.
type IPAPI struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPAPI creates an ip-api.com locator.
func NewIPAPI(timeout time.Duration, logger *slog.Logger) *IPAPI {
	return &IPAPI{
		url:        defaultIPAPIURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// CurrentPosition queries ip-api.com. Any transport or lookup failure is
// reported as ErrLocationUnavailable.
func (l *IPAPI) CurrentPosition(ctx context.Context) (domain.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url+"?fields=status,message,lat,lon,city,country", nil)
	if err != nil {
		return domain.Position{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Position{}, fmt.Errorf("%w: ip-api status %d", ErrLocationUnavailable, resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Position{}, fmt.Errorf("%w: decode response: %w", ErrLocationUnavailable, err)
	}
	if body.Status != "success" {
		return domain.Position{}, fmt.Errorf("%w: %s", ErrLocationUnavailable, body.Message)
	}

	l.logger.Debug("ip location resolved", "city", body.City, "country", body.Country)
	return domain.Position{Lat: body.Lat, Lng: body.Lon}, nil
}
