// Package geocode provides a reverse-geocoding client backed by a
// Nominatim-compatible API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org/reverse"
	defaultUserAgent = "IWT/1.0"
	defaultZoom      = 10
	cacheTTL         = 24 * time.Hour
	cacheCleanup     = time.Hour
)

// Place is the parsed reverse-geocoding result. Absent address components
// stay empty; an address-less response yields an empty Place, not an error.
type Place struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	State       string `json:"state,omitempty"`
	City        string `json:"city,omitempty"`
	District    string `json:"district,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Road        string `json:"road,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
	PlaceID     int64  `json:"place_id,omitempty"`
	OSMType     string `json:"osm_type,omitempty"`
	OSMID       int64  `json:"osm_id,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
}

// Empty reports whether the geocoder produced no usable address component.
func (p *Place) Empty() bool {
	return p == nil || (p.Country == "" && p.State == "" && p.City == "" &&
		p.District == "" && p.FullAddress == "")
}

// Client is a reverse-geocoding client with an in-process response cache.
// Responses are cached per (lat, lng, zoom) rounded to six decimals.
type Client struct {
	baseURL    string
	userAgent  string
	zoom       int
	httpClient *http.Client
	cache      *gocache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent overrides the User-Agent header sent to the API.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithZoom sets the Nominatim detail level (0-18).
func WithZoom(zoom int) Option {
	return func(c *Client) { c.zoom = zoom }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a reverse-geocoding client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		zoom:       defaultZoom,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      gocache.New(cacheTTL, cacheCleanup),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimResponse mirrors the wire format of a /reverse call.
// Nominatim reports "unable to geocode" as a 200 with an error field.
type nominatimResponse struct {
	PlaceID     int64            `json:"place_id"`
	OSMType     string           `json:"osm_type"`
	OSMID       int64            `json:"osm_id"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

type nominatimAddress struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	State       string `json:"state"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Suburb      string `json:"suburb"`
	District    string `json:"district"`
	Postcode    string `json:"postcode"`
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
}

// Reverse converts coordinates into address components.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Place, error) {
	cacheKey := fmt.Sprintf("%.6f_%.6f_%d", lat, lng, c.zoom)
	if cached, ok := c.cache.Get(cacheKey); ok {
		place := cached.(Place)
		return &place, nil
	}

	reqURL, err := c.buildURL(lat, lng)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var decoded nominatimResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("geocoding failed: %s", decoded.Error)
	}

	place := parsePlace(&decoded)
	c.cache.Set(cacheKey, place, gocache.DefaultExpiration)
	return &place, nil
}

func (c *Client) buildURL(lat, lng float64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid geocoder base URL: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("format", "json")
	q.Set("zoom", strconv.Itoa(c.zoom))
	q.Set("addressdetails", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parsePlace maps the wire format onto Place, applying the city fallback
// chain city -> town -> village and the district fallback suburb -> district.
func parsePlace(r *nominatimResponse) Place {
	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	district := r.Address.Suburb
	if district == "" {
		district = r.Address.District
	}

	return Place{
		Country:     r.Address.Country,
		CountryCode: r.Address.CountryCode,
		State:       r.Address.State,
		City:        city,
		District:    district,
		Postcode:    r.Address.Postcode,
		Road:        r.Address.Road,
		HouseNumber: r.Address.HouseNumber,
		FullAddress: r.DisplayName,
		PlaceID:     r.PlaceID,
		OSMType:     r.OSMType,
		OSMID:       r.OSMID,
		Latitude:    r.Lat,
		Longitude:   r.Lon,
	}
}
