package pickapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ramonehamilton/pickdesk/internal/filter"
	"github.com/ramonehamilton/pickdesk/internal/models"
)

// RowStatus classifies a row fetch.
type RowStatus int

const (
	// RowPresent means the item matches the filter and Markup holds its row.
	RowPresent RowStatus = iota
	// RowRemoved means the item no longer exists or no longer matches the filter.
	RowRemoved
	// RowEmpty means the server answered with an empty row and no removal status.
	RowEmpty
)

// RowResult is the outcome of a per-item fetch.
type RowResult struct {
	Status RowStatus
	Markup string
}

// Reservation is the server's answer to a set reservation toggle.
type Reservation struct {
	OK         bool    `json:"ok"`
	ReservedBy *string `json:"reserved_by"`
}

func itemPath(id models.ItemID, suffix string) string {
	return "/items/" + url.PathEscape(id.String()) + "/" + suffix
}

func (c *Client) batchPath(suffix string) string {
	return "/batch/" + url.PathEscape(c.config.BatchID) + "/" + suffix
}

// FetchRow fetches the current row for an item under the given filter.
func (c *Client) FetchRow(ctx context.Context, id models.ItemID, f filter.Source) (RowResult, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: filter.WithQuery(itemPath(id, "row"), f)})
	if err != nil {
		if IsNotFound(err) {
			return RowResult{Status: RowRemoved}, nil
		}
		return RowResult{}, fmt.Errorf("failed to fetch row %s: %w", id, err)
	}
	if resp.status == http.StatusNoContent {
		return RowResult{Status: RowRemoved}, nil
	}
	markup := resp.text()
	if markup == "" {
		return RowResult{Status: RowEmpty}, nil
	}
	return RowResult{Status: RowPresent, Markup: markup}, nil
}

// ListPath returns the path of the batch list endpoint.
func (c *Client) ListPath() string {
	return c.batchPath("items")
}

// FetchList fetches the full filtered list fragment.
func (c *Client) FetchList(ctx context.Context, f filter.Source) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: filter.WithQuery(c.ListPath(), f)})
	if err != nil {
		return "", fmt.Errorf("failed to fetch list: %w", err)
	}
	return resp.text(), nil
}

// FetchCounts fetches the batch counts fragment.
func (c *Client) FetchCounts(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: c.batchPath("counts")})
	if err != nil {
		return "", fmt.Errorf("failed to fetch counts: %w", err)
	}
	return resp.text(), nil
}

// Pick records one picked copy and returns the updated row fragment.
// An empty fragment means the row left the filtered list.
func (c *Client) Pick(ctx context.Context, id models.ItemID, f filter.Source) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: filter.WithQuery(itemPath(id, "pick"), f)})
	if err != nil {
		return "", fmt.Errorf("failed to pick %s: %w", id, err)
	}
	return resp.text(), nil
}

// UndoPath returns the undo endpoint for a pick.
func UndoPath(id models.ItemID) string {
	return itemPath(id, "undo")
}

// PostUndo issues an undo against a caller-supplied endpoint.
func (c *Client) PostUndo(ctx context.Context, endpoint string, f filter.Source) error {
	if _, err := c.do(ctx, request{method: http.MethodPost, path: filter.WithQuery(endpoint, f)}); err != nil {
		return fmt.Errorf("failed to undo via %s: %w", endpoint, err)
	}
	return nil
}

// MarkMissing flags an item as missing with an optional note.
func (c *Client) MarkMissing(ctx context.Context, id models.ItemID, note string, f filter.Source) (string, error) {
	form := url.Values{}
	form.Set("note", note)
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        filter.WithQuery(itemPath(id, "missing"), f),
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", fmt.Errorf("failed to mark %s missing: %w", id, err)
	}
	return resp.text(), nil
}

// UnmarkMissing clears the missing flag of an item.
func (c *Client) UnmarkMissing(ctx context.Context, id models.ItemID, f filter.Source) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: filter.WithQuery(itemPath(id, "unmissing"), f)})
	if err != nil {
		return "", fmt.Errorf("failed to unmark %s missing: %w", id, err)
	}
	return resp.text(), nil
}

// ReserveSet toggles the reservation of a set group for reservedBy.
func (c *Client) ReserveSet(ctx context.Context, setCode, reservedBy string) (*Reservation, error) {
	form := url.Values{}
	form.Set("set_code", setCode)
	form.Set("reserved_by", reservedBy)
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        c.batchPath("reserve-set"),
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reserve set %s: %w", setCode, err)
	}
	var out Reservation
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	return &out, nil
}

// CardModalPath returns the card-detail overlay endpoint for an item.
func CardModalPath(id models.ItemID) string {
	return "/card/modal?item_id=" + url.QueryEscape(id.String())
}

// CardModal fetches the card-detail overlay fragment.
func (c *Client) CardModal(ctx context.Context, id models.ItemID) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: CardModalPath(id)})
	if err != nil {
		return "", fmt.Errorf("failed to fetch card %s: %w", id, err)
	}
	return resp.text(), nil
}

// JoinExclusions renders an exclusion list the way the "next" endpoint expects.
func JoinExclusions(ids []models.ItemID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

// AssistNext asks for the next item in an assisted session.
func (c *Client) AssistNext(ctx context.Context, mode models.Mode, exclude []models.ItemID) (*models.Snapshot, error) {
	q := url.Values{}
	q.Set("mode", string(mode))
	q.Set("exclude_item_ids", JoinExclusions(exclude))
	resp, err := c.do(ctx, request{method: http.MethodGet, path: c.batchPath("assist/next") + "?" + q.Encode()})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next item: %w", err)
	}
	return decodeSnapshot(resp.body)
}

// AssistAct submits an operator decision and returns the following snapshot.
func (c *Client) AssistAct(ctx context.Context, act models.ActRequest) (*models.Snapshot, error) {
	if act.ExcludeItemIDs == nil {
		act.ExcludeItemIDs = []models.ItemID{}
	}
	body, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        c.batchPath("assist/act"),
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", act.Action, err)
	}
	return decodeSnapshot(resp.body)
}

func decodeSnapshot(data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if !snap.Done && snap.Item == nil {
		return nil, fmt.Errorf("snapshot has neither done nor item")
	}
	return &snap, nil
}
