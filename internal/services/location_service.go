package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pslattery/gatehouse/internal/config"
)

// UnknownLocation is recorded when geolocation is unavailable for any
// reason. A lookup failure never blocks a login.
const UnknownLocation = "Unknown Location"

// LocationService resolves an IP address to a human-readable location
type LocationService interface {
	Lookup(ctx context.Context, ip string) string
}

// IPStackLocationService resolves locations through the ipstack HTTP API.
type IPStackLocationService struct {
	client *http.Client
	apiURL string
	apiKey string
	logger *slog.Logger
}

func NewIPStackLocationService(cfg *config.GeoConfig, logger *slog.Logger) *IPStackLocationService {
	return &IPStackLocationService{
		client: &http.Client{Timeout: cfg.Timeout},
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Lookup returns "City, Region, Country" for the IP, or UnknownLocation when
// the API is unreachable, errors, or returns no usable fields.
func (s *IPStackLocationService) Lookup(ctx context.Context, ip string) string {
	if ip == "" || s.apiKey == "" {
		return UnknownLocation
	}

	endpoint := fmt.Sprintf("%s/%s?access_key=%s", s.apiURL, ip, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return UnknownLocation
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("geolocation lookup failed", slog.Any("error", err))
		return UnknownLocation
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("geolocation lookup failed", slog.Int("status", resp.StatusCode))
		return UnknownLocation
	}

	var payload struct {
		City        string `json:"city"`
		RegionName  string `json:"region_name"`
		CountryName string `json:"country_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Warn("geolocation response unreadable", slog.Any("error", err))
		return UnknownLocation
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{payload.City, payload.RegionName, payload.CountryName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}

	return strings.Join(parts, ", ")
}
