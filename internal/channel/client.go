// Package channel предоставляет клиент календарного фида внешнего канала продаж.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с менеджером каналов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// BusyRange описывает занятый во внешнем канале интервал [Start, End).
type BusyRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Calendar описывает ответ фида по одному объекту недвижимости.
type Calendar struct {
	PropertyRef string      `json:"property_ref"`
	Ranges      []BusyRange `json:"ranges"`
}

// NewClient создаёт HTTP-клиент календарного фида по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetCalendar запрашивает занятые интервалы объекта по его внешнему
// идентификатору. При ответе 429 возвращает длительность Retry-After,
// при 204 — пустой календарь без ошибки.
func (c *Client) GetCalendar(ctx context.Context, propertyRef string) (*Calendar, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("channel client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/calendar/%s", base, propertyRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, resp.StatusCode, 0, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Calendar
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
