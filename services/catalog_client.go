package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantInfo is the catalog's view of a purchasable variant.
type VariantInfo struct {
	VariantID uuid.UUID       `json:"variant_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
}

// Catalog resolves variant metadata and price. Cart listing uses it as an
// advisory enrichment; checkout uses it as the authoritative validation and
// price snapshot source.
type Catalog interface {
	VariantInfo(ctx context.Context, variantID uuid.UUID) (*VariantInfo, error)
}

// HTTPCatalogClient talks to the catalog service's internal variant endpoint.
type HTTPCatalogClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCatalogClient(baseURL string) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPCatalogClient) VariantInfo(ctx context.Context, variantID uuid.UUID) (*VariantInfo, error) {
	url := fmt.Sprintf("%s/products/variants/internal/%s", c.baseURL, variantID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("variant %s: %w", variantID, ErrVariantUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned %d", resp.StatusCode)
	}

	var info VariantInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
