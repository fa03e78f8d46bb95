package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// changeFeedTime is the start/end format of the updated and deleted resources, always sent as UTC
const changeFeedTime = "2006-01-02T15:04:05"

func queryPath(apiVersion int, q string) string {
	return fmt.Sprintf("/services/data/v%d.0/query/?q=%s", apiVersion, url.QueryEscape(q))
}

// QueryAll runs q and follows nextRecordsUrl until the last page, records are returned in page order
// - the whole call fails on the first page that fails
// - ErrPageLimit if salesforce is still returning continuation urls after MaxPages pages
func QueryAll[E any](ctx context.Context, c *Client, q string) ([]E, error) {
	var records []E
	path := queryPath(c.apiVersion, q)

	for page := 1; page <= c.maxPages; page++ {
		resp, err := c.send(ctx, call{method: http.MethodGet, path: path, success: http.StatusOK})
		if err != nil {
			return nil, err
		}

		var parsed QueryResponse[E]
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("unable to parse salesforce query page %d: %w", page, err)
		}
		records = append(records, parsed.Records...)
		c.log.Debug("accumulated salesforce query page",
			zap.Int("page", page),
			zap.Int("pageRecords", len(parsed.Records)),
			zap.Int("totalRecords", len(records)),
		)

		if parsed.NextRecordsUrl == "" {
			if records == nil {
				records = []E{}
			}
			return records, nil
		}
		path = parsed.NextRecordsUrl
	}
	return nil, fmt.Errorf("query %q: %w (%d)", q, ErrPageLimit, c.maxPages)
}

// Query runs q and returns every record across all pages
func (c *Client) Query(ctx context.Context, q string) ([]Record, error) {
	return QueryAll[Record](ctx, c, q)
}

func changeFeedPath(base, resource string, from, to time.Time) string {
	data := url.Values{}
	data.Add("start", from.UTC().Format(changeFeedTime)+"+00:00")
	data.Add("end", to.UTC().Format(changeFeedTime)+"+00:00")
	return base + "/" + resource + "?" + data.Encode()
}

func getChangeFeed[E any](ctx context.Context, c *Client, typeName, resource string, from, to time.Time) (*E, error) {
	base, err := c.catalog.ResolveUrl(typeName, RelationSobject)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, call{
		method:  http.MethodGet,
		path:    changeFeedPath(base, resource, from, to),
		success: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	var parsed *E
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse salesforce %v response: %w", resource, err)
	}
	if parsed == nil {
		parsed = new(E)
	}
	return parsed, nil
}

// GetUpdatedResponse lists the records of typeName updated between from and to, as a single page
func (c *Client) GetUpdatedResponse(ctx context.Context, typeName string, from, to time.Time) (*UpdatedResponse, error) {
	return getChangeFeed[UpdatedResponse](ctx, c, typeName, "updated", from, to)
}

// GetUpdated returns the ids of the records of typeName updated between from and to
func (c *Client) GetUpdated(ctx context.Context, typeName string, from, to time.Time) ([]string, error) {
	r, err := c.GetUpdatedResponse(ctx, typeName, from, to)
	if err != nil {
		return nil, err
	}
	return r.Ids, nil
}

// GetDeletedResponse lists the records of typeName deleted between from and to, as a single page
func (c *Client) GetDeletedResponse(ctx context.Context, typeName string, from, to time.Time) (*DeletedResponse, error) {
	return getChangeFeed[DeletedResponse](ctx, c, typeName, "deleted", from, to)
}

// GetDeleted returns the records of typeName deleted between from and to
func (c *Client) GetDeleted(ctx context.Context, typeName string, from, to time.Time) ([]DeletedRecord, error) {
	r, err := c.GetDeletedResponse(ctx, typeName, from, to)
	if err != nil {
		return nil, err
	}
	return r.DeletedRecords, nil
}
