// Package liveweather fetches current conditions from a WeatherAPI-style
// endpoint and converts them into a single observation row.
package liveweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"forecast-platform/internal/models"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// Client calls the live current-conditions API with retries, exponential
// backoff and a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a live weather client.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "liveweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpClient,
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: cb,
	}
}

// currentPayload mirrors the relevant slice of the current.json response.
type currentPayload struct {
	Location struct {
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		DewPointC  float64 `json:"dewpoint_c"`
		Humidity   float64 `json:"humidity"`
		PrecipMM   float64 `json:"precip_mm"`
		WindDegree float64 `json:"wind_degree"`
		WindKPH    float64 `json:"wind_kph"`
		PressureMB float64 `json:"pressure_mb"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Current fetches the latest conditions for the given city as one
// observation row.
func (c *Client) Current(ctx context.Context, city string) (*models.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", c.apiKey)
		values.Set("q", city)
		values.Set("aqi", "no")

		u := fmt.Sprintf("%s/current.json?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := c.doWithResilience(ctx, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload currentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode live weather response: %w", err)
	}

	// The API reports local wall-clock time without seconds.
	ts, err := models.ParseTimestamp(payload.Location.LocalTime + ":00")
	if err != nil {
		return nil, err
	}

	obs := &models.Observation{
		Timestamp:     ts,
		Temperature:   &payload.Current.TempC,
		DewPoint:      &payload.Current.DewPointC,
		Humidity:      &payload.Current.Humidity,
		Precipitation: &payload.Current.PrecipMM,
		WindDirection: &payload.Current.WindDegree,
		WindSpeed:     &payload.Current.WindKPH,
		Pressure:      &payload.Current.PressureMB,
		Condition:     models.SignalFromText(payload.Current.Condition.Text),
	}
	return obs, nil
}

// doWithResilience executes the HTTP request with retries, exponential
// backoff, and the circuit breaker.
func (c *Client) doWithResilience(ctx context.Context, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	if c.client == nil {
		return nil, errNoHTTPClient
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
