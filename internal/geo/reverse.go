package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"tourprism/internal/models"
	"tourprism/pkg/logger"
)

// UnknownLocation is the label when no city level name resolves.
const UnknownLocation = "Unknown Location"

// ReverseGeocoder turns a coordinate into a city level label.
type ReverseGeocoder interface {
	CityName(ctx context.Context, c models.Coords) (string, error)
}

// Nominatim 反向地理编码，结果按约 100m 网格缓存
type Nominatim struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     *expirable.LRU[string, string]
}

func NewNominatim(baseURL string, client *http.Client) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "tourprism-web/1.0",
		http:      client,
		cache:     expirable.NewLRU[string, string](1024, nil, 6*time.Hour),
	}
}

type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	Suburb  string `json:"suburb"`
}

// label walks locality, town, village, suburb.
func (a nominatimAddress) label() string {
	for _, s := range []string{a.City, a.Town, a.Village, a.Suburb} {
		if s != "" {
			return s
		}
	}
	return UnknownLocation
}

// CityName always returns a usable label, UnknownLocation on failure.
func (n *Nominatim) CityName(ctx context.Context, c models.Coords) (string, error) {
	key := fmt.Sprintf("%.3f,%.3f", c.Latitude, c.Longitude)
	if v, ok := n.cache.Get(key); ok {
		return v, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return UnknownLocation, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		logger.Warn("reverse geocode failed", zap.Error(err))
		return UnknownLocation, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UnknownLocation, fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}

	var body struct {
		Address nominatimAddress `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return UnknownLocation, fmt.Errorf("reverse geocode: %w", err)
	}
	label := body.Address.label()
	n.cache.Add(key, label)
	return label, nil
}
