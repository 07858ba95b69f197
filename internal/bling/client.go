package bling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/models"
)

const maxErrorBody = 2048

// Client talks to the Bling v3 REST API with a bearer token per call.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a Bling API client against the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// productSearchResponse is the shape of GET /produtos list lookups.
type productSearchResponse struct {
	Data []struct {
		ID     int64  `json:"id"`
		Codigo string `json:"codigo"`
	} `json:"data"`
}

// ProductDetail is the full product record. The media field is a single
// object holding two image sub-lists, not an array.
type ProductDetail struct {
	ID    int64 `json:"id"`
	Midia struct {
		Imagens struct {
			Internas []ImageEntry `json:"internas"`
			Externas []ImageEntry `json:"externas"`
		} `json:"imagens"`
	} `json:"midia"`
	Variacoes []struct {
		ID   int64  `json:"id"`
		Nome string `json:"nome"`
	} `json:"variacoes"`
}

// ImageEntry is one image reference inside a product's media object.
type ImageEntry struct {
	Link string `json:"link"`
}

type productDetailResponse struct {
	Data ProductDetail `json:"data"`
}

type legacyImagesResponse struct {
	Data []ImageEntry `json:"data"`
}

// SearchBySKU resolves a product by exact code lookup (GET /produtos?codigo=).
// Returns ErrProductNotFound when nothing matches. When the SKU matches more
// than one product the first is taken and a warning is logged.
func (c *Client) SearchBySKU(ctx context.Context, token, account, sku string) (*models.ProductRef, error) {
	query := url.Values{"codigo": {sku}}
	return c.search(ctx, token, account, sku, query)
}

// SearchBySKUFilter resolves a product with the filters syntax used against
// destination accounts (GET /produtos?filters=sku['<sku>']).
func (c *Client) SearchBySKUFilter(ctx context.Context, token, account, sku string) (*models.ProductRef, error) {
	query := url.Values{"filters": {fmt.Sprintf("sku['%s']", sku)}}
	return c.search(ctx, token, account, sku, query)
}

func (c *Client) search(ctx context.Context, token, account, sku string, query url.Values) (*models.ProductRef, error) {
	var resp productSearchResponse
	if err := c.get(ctx, token, "/produtos?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &errors.ErrProductNotFound{Account: account, SKU: sku}
	}
	if len(resp.Data) > 1 {
		c.logger.Warn("SKU matches multiple products, taking the first",
			"account", account, "sku", sku, "matches", len(resp.Data))
	}
	return &models.ProductRef{ID: resp.Data[0].ID, SKU: sku}, nil
}

// GetProduct fetches the full detail for a product or variant id.
func (c *Client) GetProduct(ctx context.Context, token string, id int64) (*ProductDetail, error) {
	var resp productDetailResponse
	if err := c.get(ctx, token, fmt.Sprintf("/produtos/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// LegacyImages fetches the flat image list exposed by the older API shape
// (GET /produtos/{id}/imagens). Used as a fallback when a product detail
// carries no media object.
func (c *Client) LegacyImages(ctx context.Context, token string, id int64) ([]ImageEntry, error) {
	var resp legacyImagesResponse
	if err := c.get(ctx, token, fmt.Sprintf("/produtos/%d/imagens", id), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AttachImage posts one local image file to a destination product
// (POST /produtos/{id}/anexar-imagem, multipart field "file").
func (c *Client) AttachImage(ctx context.Context, token string, productID int64, imagePath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return &errors.ErrFileRead{Path: imagePath, Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/produtos/%d/anexar-imagem", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp, http.MethodPost, endpoint)
}

func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, http.MethodGet, endpoint); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) checkStatus(resp *http.Response, method, endpoint string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return rateLimitErrorFromHeaders(resp.Header, fmt.Sprintf("rate limited: %s %s", method, endpoint))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &errors.ErrAPIStatus{
			Method: method,
			URL:    endpoint,
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
	return nil
}
