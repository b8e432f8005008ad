package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client implements Service over the calendar service's JSON HTTP API.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
}

func NewClient(baseURL, token, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Client.do: can't marshal body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("Client.do: can't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Client.do: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("Client.do: %s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusConflict:
		return &PermissionError{Op: method + " " + path, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Client.do: %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("Client.do: can't decode response: %w", err)
	}
	return nil
}

func (c *Client) eventsPath() string {
	return "/users/" + url.PathEscape(c.userID) + "/events"
}

// ListEvents pages through every event overlapping [start, end). An
// empty calendarIDs lists every calendar the user can see.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time, calendarIDs []string) ([]Payload, error) {
	var items []Payload
	pageToken := ""
	for {
		query := url.Values{
			"timeMin": {start.UTC().Format(time.RFC3339)},
			"timeMax": {end.UTC().Format(time.RFC3339)},
		}
		for _, id := range calendarIDs {
			query.Add("calendarId", id)
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		var page ListResponse
		if err := c.do(ctx, http.MethodGet, c.eventsPath(), query, nil, &page); err != nil {
			return nil, fmt.Errorf("Client.ListEvents: %w", err)
		}
		items = append(items, page.Items...)
		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}

func writeQuery(calendarID string, notify bool) url.Values {
	query := url.Values{}
	if calendarID != "" {
		query.Set("calendarId", calendarID)
	}
	if notify {
		query.Set("sendUpdates", "all")
	}
	return query
}

func (c *Client) CreateEvent(ctx context.Context, payload Payload, calendarID string, notify bool) (Payload, error) {
	var created Payload
	if err := c.do(ctx, http.MethodPost, c.eventsPath(), writeQuery(calendarID, notify), payload, &created); err != nil {
		return Payload{}, fmt.Errorf("Client.CreateEvent: %w", err)
	}
	return created, nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, payload Payload, calendarID string, notify bool, scope UpdateScope) (Payload, error) {
	query := writeQuery(calendarID, notify)
	query.Set("scope", string(scope))
	var updated Payload
	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodPatch, path, query, payload, &updated); err != nil {
		return Payload{}, fmt.Errorf("Client.UpdateEvent: %w", err)
	}
	return updated, nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID, calendarID string, scope UpdateScope) error {
	query := writeQuery(calendarID, false)
	query.Set("scope", string(scope))
	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodDelete, path, query, nil, nil); err != nil {
		return fmt.Errorf("Client.DeleteEvent: %w", err)
	}
	return nil
}

func (c *Client) RespondToInvite(ctx context.Context, eventID, response, calendarID string) error {
	path := c.eventsPath() + "/" + url.PathEscape(eventID) + "/respond"
	body := map[string]string{"response": response}
	if err := c.do(ctx, http.MethodPost, path, writeQuery(calendarID, true), body, nil); err != nil {
		return fmt.Errorf("Client.RespondToInvite: %w", err)
	}
	return nil
}

func (c *Client) statePath() string {
	return "/users/" + url.PathEscape(c.userID) + "/state"
}

func (c *Client) FetchUserState(ctx context.Context) (UserState, error) {
	var state UserState
	if err := c.do(ctx, http.MethodGet, c.statePath(), nil, nil, &state); err != nil {
		if IsNotFound(err) {
			return UserState{}, nil
		}
		return UserState{}, fmt.Errorf("Client.FetchUserState: %w", err)
	}
	return state, nil
}

func (c *Client) BatchUpdateUserState(ctx context.Context, update UserStateUpdate) error {
	if err := c.do(ctx, http.MethodPatch, c.statePath(), nil, update, nil); err != nil {
		return fmt.Errorf("Client.BatchUpdateUserState: %w", err)
	}
	return nil
}

func (c *Client) linksPath() string {
	return "/users/" + url.PathEscape(c.userID) + "/todo-links"
}

func (c *Client) TodoLinks(ctx context.Context) ([]TodoLink, error) {
	var links []TodoLink
	if err := c.do(ctx, http.MethodGet, c.linksPath(), nil, nil, &links); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("Client.TodoLinks: %w", err)
	}
	return links, nil
}

func (c *Client) PutTodoLink(ctx context.Context, link TodoLink) error {
	path := c.linksPath() + "/" + url.PathEscape(link.TodoID)
	if err := c.do(ctx, http.MethodPut, path, nil, link, nil); err != nil {
		return fmt.Errorf("Client.PutTodoLink: %w", err)
	}
	return nil
}

func (c *Client) DeleteTodoLink(ctx context.Context, todoID string) error {
	path := c.linksPath() + "/" + url.PathEscape(todoID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil && !IsNotFound(err) {
		return fmt.Errorf("Client.DeleteTodoLink: %w", err)
	}
	return nil
}
