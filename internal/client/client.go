package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"detailing/internal/models"
	"detailing/internal/pricing"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "detailing:client:"

// Client calls the booking HTTP API on behalf of a front end.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports a 409, i.e. the slot was taken or the booking changed meanwhile.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type CatalogResponse struct {
	Services []models.Service    `json:"services"`
	AddOns   []models.AddOn      `json:"add_ons"`
	Zones    []models.TravelZone `json:"travel_zones"`
}

type SlotsResponse struct {
	Date           string            `json:"date"`
	Outcome        string            `json:"outcome"`
	Degraded       bool              `json:"degraded"`
	AvailableCount int               `json:"available_count"`
	Slots          []models.TimeSlot `json:"slots"`
}

type TravelFeeResponse struct {
	Amount      float64 `json:"amount"`
	Zone        string  `json:"zone"`
	NeedsReview bool    `json:"needs_review"`
	Postcode    string  `json:"postcode"`
	OutwardCode string  `json:"outward_code"`
}

// NewBooking is the body of POST /api/v1/bookings.
type NewBooking struct {
	CustomerName string             `json:"customer_name"`
	Email        string             `json:"email,omitempty"`
	Phone        string             `json:"phone,omitempty"`
	Postcode     string             `json:"postcode"`
	Address      string             `json:"address,omitempty"`
	ServiceType  models.ServiceType `json:"service_type"`
	VehicleSize  models.VehicleSize `json:"vehicle_size"`
	AddOns       []string           `json:"add_ons,omitempty"`
	Date         string             `json:"booking_date"`
	Time         string             `json:"booking_time"`
	Notes        string             `json:"notes,omitempty"`
}

// New constructs a client with baseURL, API key and extra header.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache caches catalog and slot lookups in redis for ttl.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) Catalog(ctx context.Context) (*CatalogResponse, error) {
	var resp CatalogResponse
	if c.readCache(ctx, "catalog", &resp) {
		return &resp, nil
	}
	if err := c.doGet(ctx, "/api/v1/catalog", &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, "catalog", resp)
	return &resp, nil
}

// Slots fetches availability for date (YYYY-MM-DD). Degraded answers are not cached.
func (c *Client) Slots(ctx context.Context, date string) (*SlotsResponse, error) {
	cacheKey := "slots:" + date
	var resp SlotsResponse
	if c.readCache(ctx, cacheKey, &resp) {
		return &resp, nil
	}
	if err := c.doGet(ctx, "/api/v1/slots?date="+url.QueryEscape(date), &resp); err != nil {
		return nil, err
	}
	if !resp.Degraded {
		c.writeCache(ctx, cacheKey, resp)
	}
	return &resp, nil
}

func (c *Client) TravelFee(ctx context.Context, postcode string) (*TravelFeeResponse, error) {
	var resp TravelFeeResponse
	if err := c.doGet(ctx, "/api/v1/travel-fee?postcode="+url.QueryEscape(postcode), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error) {
	var resp pricing.Quote
	if err := c.doPost(ctx, "/api/v1/quote", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateBooking posts a booking and drops the cached slots of its date.
func (c *Client) CreateBooking(ctx context.Context, req NewBooking) (*models.Booking, error) {
	var resp models.Booking
	if err := c.doPost(ctx, "/api/v1/bookings", req, &resp); err != nil {
		return nil, err
	}
	c.dropCache(ctx, "slots:"+req.Date)
	return &resp, nil
}

func (c *Client) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var resp models.Booking
	if err := c.doGet(ctx, "/api/v1/bookings/"+strconv.FormatInt(id, 10), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKeyPrefix+key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKeyPrefix+key).Err()
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
