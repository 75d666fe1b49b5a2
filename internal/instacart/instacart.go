// Package instacart turns a shopping list into an Instacart shopping-list link.
package instacart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chefitup/internal/config"
	"chefitup/internal/logging"
	"chefitup/internal/shopping"

	"go.uber.org/zap"
)

const (
	// DefaultTitle is used when Export is called without a title.
	DefaultTitle = "ChefItUp Shopping List"

	mockCartURL    = "https://www.instacart.com/store/mock-cart"
	linkLifetime   = 7 * 24 * time.Hour
	expiresInDays  = 7
	requestTimeout = 20 * time.Second
	maxErrorBody   = 4 << 10
)

// ErrNoURL is returned when Instacart answers 2xx without a link.
var ErrNoURL = errors.New("instacart response has no url")

// ExportError is a non-2xx answer from Instacart.
type ExportError struct {
	StatusCode int
	Body       string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("instacart api error (%d): %s", e.StatusCode, e.Body)
}

// Link is a shareable shopping-list URL.
type Link struct {
	URL       string
	ExpiresAt time.Time
	Mock      bool
}

// ExportObserver is told about every export. metrics.Collector implements it.
type ExportObserver interface {
	ObserveExport(mock bool, err error)
}

type lineItem struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	DisplayText string  `json:"display_text,omitempty"`
}

type landingPage struct {
	PartnerLinkbackURL string `json:"partner_linkback_url,omitempty"`
	EnablePantryItems  bool   `json:"enable_pantry_items"`
}

type productsLinkRequest struct {
	Title       string       `json:"title"`
	LinkType    string       `json:"link_type"`
	ExpiresIn   int          `json:"expires_in"`
	LineItems   []lineItem   `json:"line_items"`
	LandingPage *landingPage `json:"landing_page_configuration,omitempty"`
}

type productsLinkResponse struct {
	URL             string `json:"url"`
	ProductsLinkURL string `json:"products_link_url"`
	ExpiresAt       string `json:"expires_at"`
}

// Client talks to the Instacart Developer Platform.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	linkbackURL string
	observer    ExportObserver
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.RWMutex
	mockMode bool
}

// NewClient creates a Client. Without an API key the client stays in mock mode.
func NewClient(cfg *config.Config, observer ExportObserver, logger *zap.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		apiKey:      cfg.InstacartAPIKey,
		baseURL:     strings.TrimRight(cfg.InstacartBaseURL, "/"),
		linkbackURL: cfg.InstacartLinkbackURL,
		observer:    observer,
		logger:      logging.OrNop(logger),
		now:         time.Now,
		mockMode:    cfg.InstacartMockMode,
	}
}

// SetMockMode switches mock mode at runtime.
func (c *Client) SetMockMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mockMode = on
}

// MockMode reports whether exports are simulated.
func (c *Client) MockMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mockMode || c.apiKey == ""
}

// Export creates a shopping-list link for items.
func (c *Client) Export(ctx context.Context, items []shopping.Item, title string) (Link, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	mock := c.MockMode()
	link, err := c.export(ctx, items, title, mock)
	if c.observer != nil {
		c.observer.ObserveExport(mock, err)
	}
	if err != nil {
		c.logger.Warn("instacart export failed", zap.Int("items", len(items)), zap.Error(err))
		return Link{}, err
	}

	c.logger.Info("instacart export created", zap.Int("items", len(items)), zap.Bool("mock", mock))
	return link, nil
}

func (c *Client) export(ctx context.Context, items []shopping.Item, title string, mock bool) (Link, error) {
	if mock {
		return Link{
			URL:       mockLink(items, title),
			ExpiresAt: c.now().Add(linkLifetime),
			Mock:      true,
		}, nil
	}

	payload := productsLinkRequest{
		Title:     title,
		LinkType:  "shopping_list",
		ExpiresIn: expiresInDays,
		LineItems: lineItems(items),
		LandingPage: &landingPage{
			PartnerLinkbackURL: c.linkbackURL,
			EnablePantryItems:  true,
		},
	}
	return c.createLink(ctx, payload)
}

// TestConnection posts a one-item list to check the API key. It does nothing
// in mock mode.
func (c *Client) TestConnection(ctx context.Context) error {
	if c.MockMode() {
		return nil
	}
	_, err := c.createLink(ctx, productsLinkRequest{
		Title:     "Test Connection",
		LinkType:  "shopping_list",
		ExpiresIn: 1,
		LineItems: []lineItem{{Name: "Test Item", Quantity: 1}},
	})
	return err
}

func (c *Client) createLink(ctx context.Context, payload productsLinkRequest) (Link, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Link{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products_link", bytes.NewReader(body))
	if err != nil {
		return Link{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Link{}, fmt.Errorf("failed to reach instacart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Link{}, &ExportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out productsLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Link{}, fmt.Errorf("failed to decode response: %w", err)
	}

	link := Link{URL: out.URL, ExpiresAt: c.now().Add(time.Duration(payload.ExpiresIn) * 24 * time.Hour)}
	if link.URL == "" {
		link.URL = out.ProductsLinkURL
	}
	if link.URL == "" {
		return Link{}, ErrNoURL
	}
	if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
		link.ExpiresAt = t
	}
	return link, nil
}

func lineItems(items []shopping.Item) []lineItem {
	out := make([]lineItem, 0, len(items))
	for _, it := range items {
		qty := 1.0
		if q, ok := shopping.ParseQuantity(it.Quantity); ok {
			qty = q
		}
		shown := strings.TrimSpace(it.Quantity)
		if shown == "" {
			shown = "1"
		}
		out = append(out, lineItem{
			Name:        it.Name,
			Quantity:    qty,
			Unit:        it.Unit,
			DisplayText: strings.Join(strings.Fields(shown+" "+it.Unit+" "+it.Name), " "),
		})
	}
	return out
}

func mockLink(items []shopping.Item, title string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Quantity+" "+it.Unit+" "+it.Name)
	}
	return mockCartURL + "?title=" + encodeComponent(title) + "&items=" + encodeComponent(strings.Join(parts, ","))
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*",
)

// encodeComponent percent-encodes s the way browsers encode a URI
// component: spaces become %20 and !'()* are left as they are.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
