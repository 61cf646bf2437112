package siamsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/models"
	"github.com/shopspring/decimal"
)

type siamClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newSiamClient(apiKey string) (*siamClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("SIAMBOOKS_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.siambooks.co.th"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("SIAMBOOKS_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("siambooks api key is empty")
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("SIAMBOOKS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &siamClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type siamDocument struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	VendorName  string      `json:"vendor_name"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	IssuedDate  string      `json:"issued_date"`
}

type siamListResponse struct {
	Data       []json.RawMessage `json:"data"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

// ListDocuments fetches every document issued at or after since, in
// deterministic (issued_date, external_id) order. The boundary is inclusive
// so documents sharing the watermark timestamp are never lost; already-synced
// ones are filtered out by the worker.
func (c *siamClient) ListDocuments(ctx context.Context, clientId string, since time.Time) ([]models.SourceDocument, error) {
	nextCursor := ""
	var docs []models.SourceDocument

	for {
		params := url.Values{}
		params.Set("issued_since", since.UTC().Format(time.RFC3339))
		params.Set("limit", "200")
		if nextCursor != "" {
			params.Set("cursor", nextCursor)
		}

		resp, err := c.getList(ctx, "/v1/documents", params)
		if err != nil {
			return nil, err
		}

		for _, raw := range resp.Data {
			var d siamDocument
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, fmt.Errorf("siambooks document payload: %w", err)
			}
			doc, err := mapDocument(clientId, d)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		if resp.NextCursor == "" || (resp.HasMore != nil && !*resp.HasMore) {
			break
		}
		nextCursor = resp.NextCursor
	}

	SortDocuments(docs)
	return docs, nil
}

func (c *siamClient) getList(ctx context.Context, path string, params url.Values) (siamListResponse, error) {
	select {
	case <-ctx.Done():
		return siamListResponse{}, ctx.Err()
	case <-c.limiter:
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return siamListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return siamListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return siamListResponse{}, fmt.Errorf("siambooks api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed siamListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return siamListResponse{}, err
	}
	return parsed, nil
}

func mapDocument(clientId string, d siamDocument) (models.SourceDocument, error) {
	externalId := strings.TrimSpace(d.ID)
	if externalId == "" {
		return models.SourceDocument{}, errors.New("siambooks document missing id")
	}

	docType := models.DocumentType(strings.ToLower(strings.TrimSpace(d.Type)))
	if !docType.IsValid() {
		return models.SourceDocument{}, fmt.Errorf("siambooks document %s: unknown type %q", externalId, d.Type)
	}

	issued, err := time.Parse(time.RFC3339, strings.TrimSpace(d.IssuedDate))
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("siambooks document %s: bad issued_date: %w", externalId, err)
	}

	// Amounts arrive in major units; storage is minor units throughout.
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("siambooks document %s: bad amount: %w", externalId, err)
	}
	minor := amount.Shift(2).Round(0).IntPart()

	return models.SourceDocument{
		ExternalId:       externalId,
		ClientId:         clientId,
		Type:             docType,
		VendorName:       strings.TrimSpace(d.VendorName),
		AmountMinorUnits: minor,
		Description:      strings.TrimSpace(d.Description),
		IssuedDate:       issued.UTC(),
	}, nil
}

// SortDocuments orders by (issued_date, external_id), the same total order
// the watermark cursor walks.
func SortDocuments(docs []models.SourceDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].IssuedDate.Equal(docs[j].IssuedDate) {
			return docs[i].IssuedDate.Before(docs[j].IssuedDate)
		}
		return docs[i].ExternalId < docs[j].ExternalId
	})
}
