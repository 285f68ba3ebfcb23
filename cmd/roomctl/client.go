package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"routesim/server/internal/geo"
	"routesim/server/internal/net/proto"
	"routesim/server/internal/routes"
)

type roomState struct {
	RouteID         string    `json:"routeId"`
	Index           int       `json:"index"`
	Position        geo.Point `json:"position"`
	Speed           float64   `json:"speed"`
	Playing         bool      `json:"playing"`
	SubscriberCount int       `json:"subscriberCount"`
}

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{base: strings.TrimRight(base, "/"), http: http.DefaultClient}
}

func (c *client) routes(ctx context.Context, query string) ([]routes.Route, error) {
	path := "/api/routes"
	if query = strings.TrimSpace(query); query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var list []routes.Route
	return list, c.do(ctx, http.MethodGet, path, &list)
}

func (c *client) rooms(ctx context.Context) ([]proto.RoomSummary, error) {
	var rooms []proto.RoomSummary
	return rooms, c.do(ctx, http.MethodGet, "/api/simulate/rooms", &rooms)
}

func (c *client) control(ctx context.Context, routeID, action string) (roomState, error) {
	var state roomState
	path := fmt.Sprintf("/api/simulate/%s/%s", url.PathEscape(routeID), action)
	return state, c.do(ctx, http.MethodPost, path, &state)
}

func (c *client) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.Unmarshal(body, dst)
}
