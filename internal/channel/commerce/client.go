// Package commerce is a thin client for the sales channel's Admin GraphQL
// API, used by the full reconciliation sweep.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const pageSize = 100

// Variant is one sellable variant with its per-location availability.
type Variant struct {
	SKU          string
	Barcode      string
	Title        string
	VariantTitle string
	Price        *float64
	Levels       []LocationLevel
}

// LocationLevel pairs the channel's location name with the available
// quantity it reports there.
type LocationLevel struct {
	LocationName string
	Available    int
}

// Client wraps the Admin GraphQL API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient constructs a client for the given store domain, e.g.
// "example.myshopify.com".
func NewClient(store, token, apiVersion string) *Client {
	return &Client{
		endpoint: fmt.Sprintf("https://%s/admin/api/%s/graphql.json", store, apiVersion),
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

const variantsQuery = `query Variants($first: Int!, $after: String) {
  productVariants(first: $first, after: $after) {
    edges {
      node {
        sku
        barcode
        title
        price
        product { title }
        inventoryItem {
          inventoryLevels(first: 10) {
            edges {
              node {
                location { name }
                quantities(names: ["available"]) { name quantity }
              }
            }
          }
        }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// Variants pulls every variant, following pagination cursors until the last
// page.
func (c *Client) Variants(ctx context.Context) ([]Variant, error) {
	var (
		out    []Variant
		cursor *string
	)
	for {
		page, err := c.variantsPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, edge := range page.Data.ProductVariants.Edges {
			out = append(out, edge.Node.toVariant())
		}
		info := page.Data.ProductVariants.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			return out, nil
		}
		cursor = &info.EndCursor
	}
}

func (c *Client) variantsPage(ctx context.Context, cursor *string) (*variantsResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"query": variantsQuery,
		"variables": map[string]any{
			"first": pageSize,
			"after": cursor,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("admin api request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("admin api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var page variantsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode admin api response: %w", err)
	}
	if len(page.Errors) > 0 {
		return nil, fmt.Errorf("admin api error: %s", page.Errors[0].Message)
	}
	return &page, nil
}

type variantsResponse struct {
	Data struct {
		ProductVariants struct {
			Edges []struct {
				Node variantNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"productVariants"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type variantNode struct {
	SKU     string `json:"sku"`
	Barcode string `json:"barcode"`
	Title   string `json:"title"`
	Price   string `json:"price"`
	Product struct {
		Title string `json:"title"`
	} `json:"product"`
	InventoryItem struct {
		InventoryLevels struct {
			Edges []struct {
				Node struct {
					Location struct {
						Name string `json:"name"`
					} `json:"location"`
					Quantities []struct {
						Name     string `json:"name"`
						Quantity int    `json:"quantity"`
					} `json:"quantities"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"inventoryLevels"`
	} `json:"inventoryItem"`
}

func (n variantNode) toVariant() Variant {
	v := Variant{
		SKU:          n.SKU,
		Barcode:      n.Barcode,
		Title:        n.Product.Title,
		VariantTitle: n.Title,
	}
	if price, err := strconv.ParseFloat(n.Price, 64); err == nil && n.Price != "" {
		v.Price = &price
	}
	for _, edge := range n.InventoryItem.InventoryLevels.Edges {
		level := LocationLevel{LocationName: edge.Node.Location.Name}
		for _, q := range edge.Node.Quantities {
			if q.Name == "available" {
				level.Available = q.Quantity
			}
		}
		v.Levels = append(v.Levels, level)
	}
	return v
}
