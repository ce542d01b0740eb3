package schedule

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
	"time"

	"github.com/google/uuid"

	appLog "groupsched/internal/log"
	"groupsched/internal/model"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Fetcher is what the Coordinator needs from the schedule service.
type Fetcher interface {
	Fetch(ctx context.Context, group string, iv model.Interval) ([]model.ScheduleEntry, error)
}

// Client talks to the external schedule service:
//
//	GET {baseURL}/get_schedule/?user={group}&dstart={DD.MM.YYYY}&dfinish={DD.MM.YYYY}
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a schedule service client. A zero timeout keeps the
// transport default, so a hung request blocks until ctx is canceled.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying *http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// RequestURL builds the request URL for group and iv.
func (c *Client) RequestURL(group string, iv model.Interval) string {
	q := url.Values{}
	q.Set("user", group)
	q.Set("dstart", iv.Start.Dotted())
	q.Set("dfinish", iv.End.Dotted())
	return c.baseURL + "/get_schedule/?" + q.Encode()
}

// rawEntry mirrors one element of the service's "schedule" array.
type rawEntry struct {
	Date       string `json:"date"`
	TimeStart  string `json:"timestart"`
	TimeFinish string `json:"timefinish"`
	Name       string `json:"name"`
	Teacher    string `json:"teacher"`
	Room       string `json:"aydit"`
	GroupName  string `json:"namegroup"`
}

// Fetch loads the schedule of group for iv.
//
// Outcomes:
//   - 2xx with an array "schedule" field: the valid entries, nil error
//   - 500: ErrEmptyRange
//   - any other status, bad JSON, missing or non-array "schedule":
//     a *FetchError of kind InvalidResponse
//   - transport errors: a *FetchError of kind NetworkFailure
func (c *Client) Fetch(ctx context.Context, group string, iv model.Interval) ([]model.ScheduleEntry, error) {
	reqID := uuid.NewString()
	target := c.RequestURL(group, iv)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, invalidResponse(0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	appLog.Info("schedule fetch start", "request_id", reqID, "group", group, "range", iv.String())
	started := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("schedule fetch network error", err, "request_id", reqID, "group", group)
		return nil, networkFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		appLog.Error("schedule fetch body read failed", err, "request_id", reqID)
		return nil, networkFailure(err)
	}

	switch {
	case resp.StatusCode/100 == 2:
	case resp.StatusCode == http.StatusInternalServerError:
		appLog.Info("schedule fetch: no data for range", "request_id", reqID, "group", group, "range", iv.String())
		return nil, ErrEmptyRange
	default:
		err := errors.New(resp.Status)
		appLog.Error("schedule fetch non-OK", err, "request_id", reqID, "status", resp.StatusCode)
		return nil, invalidResponse(resp.StatusCode, err)
	}

	entries, err := decodeSchedule(body, reqID)
	if err != nil {
		appLog.Error("schedule fetch invalid body", err, "request_id", reqID)
		return nil, invalidResponse(resp.StatusCode, err)
	}

	appLog.Info("schedule fetch success",
		"request_id", reqID,
		"group", group,
		"range", iv.String(),
		"entries", len(entries),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return entries, nil
}

// decodeSchedule validates the response shape and converts elements into
// model entries. Elements with unusable dates or times are skipped.
func decodeSchedule(body []byte, reqID string) ([]model.ScheduleEntry, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	raw, ok := envelope["schedule"]
	if !ok {
		return nil, errors.New(`missing "schedule" field`)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New(`"schedule" is not an array`)
	}

	var items []rawEntry
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	out := make([]model.ScheduleEntry, 0, len(items))
	for i, it := range items {
		e, err := it.toEntry()
		if err != nil {
			appLog.Error("schedule entry skipped", err, "request_id", reqID, "index", i)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r rawEntry) toEntry() (model.ScheduleEntry, error) {
	d, err := model.ParseDate(r.Date)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	start, err := model.ParseClock(r.TimeStart)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	finish, err := model.ParseClock(r.TimeFinish)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	return model.ScheduleEntry{
		Date:       d,
		TimeStart:  start,
		TimeFinish: finish,
		CourseName: strings.TrimSpace(r.Name),
		Teacher:    strings.TrimSpace(r.Teacher),
		Room:       strings.TrimSpace(r.Room),
		GroupName:  strings.TrimSpace(r.GroupName),
	}, nil
}
