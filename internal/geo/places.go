package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tourprism/internal/models"
)

// Prediction is one autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Place is a resolved suggestion: display string, coordinates and derived city.
type Place struct {
	Address string
	Coords  models.Coords
	City    string
}

// Places 地点自动补全（Google Places Web Service 兼容接口）
type Places struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewPlaces(baseURL, apiKey string, client *http.Client) *Places {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Places{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

func (p *Places) Enabled() bool { return p != nil && p.apiKey != "" }

func (p *Places) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("input", input)
	var body struct {
		Status      string       `json:"status"`
		Predictions []Prediction `json:"predictions"`
	}
	if err := p.get(ctx, "/autocomplete/json", q, &body); err != nil {
		return nil, err
	}
	if err := placesStatus(body.Status); err != nil {
		return nil, err
	}
	return body.Predictions, nil
}

// Details resolves a prediction. City comes from the "locality" component and may be empty.
func (p *Places) Details(ctx context.Context, placeID string) (*Place, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address,geometry,address_components")
	var body struct {
		Status string `json:"status"`
		Result struct {
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
			AddressComponents []struct {
				LongName string   `json:"long_name"`
				Types    []string `json:"types"`
			} `json:"address_components"`
		} `json:"result"`
	}
	if err := p.get(ctx, "/details/json", q, &body); err != nil {
		return nil, err
	}
	if err := placesStatus(body.Status); err != nil {
		return nil, err
	}
	place := &Place{
		Address: body.Result.FormattedAddress,
		Coords:  coords(body.Result.Geometry.Location.Lat, body.Result.Geometry.Location.Lng),
	}
	for _, c := range body.Result.AddressComponents {
		for _, t := range c.Types {
			if t == "locality" {
				place.City = c.LongName
			}
		}
	}
	return place, nil
}

func (p *Places) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	q.Set("key", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("places: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func placesStatus(s string) error {
	switch s {
	case "", "OK", "ZERO_RESULTS":
		return nil
	default:
		return fmt.Errorf("places: %s", s)
	}
}
