package net

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"routesim/server"
	"routesim/server/internal/geo"
	"routesim/server/internal/routes"
	"routesim/server/internal/telemetry"
)

const maxRouteBody = 1 << 20

const (
	messageRouteNotFound  = "Route not found"
	messageNoActiveRoom   = "No active room"
	messageInvalidPayload = "invalid payload"
	messageExpectedJSON   = "expected a GeoJSON document"
	messageInternalError  = "Internal error"
)

type routeAPI struct {
	repo   routes.Repository
	logger telemetry.Logger
}

func (a *routeAPI) list(w nethttp.ResponseWriter, r *nethttp.Request) {
	var (
		list []routes.Route
		err  error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		list, err = a.repo.Search(r.Context(), q)
	} else {
		list, err = a.repo.List(r.Context())
	}
	if err != nil {
		a.fail(w, "list routes", err)
		return
	}
	if list == nil {
		list = []routes.Route{}
	}
	writeJSON(w, nethttp.StatusOK, list)
}

func (a *routeAPI) get(w nethttp.ResponseWriter, r *nethttp.Request) {
	route, err := a.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "get route", err)
		return
	}
	writeJSON(w, nethttp.StatusOK, route)
}

func (a *routeAPI) create(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req routes.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	route, err := a.repo.Create(r.Context(), req)
	if err != nil {
		a.fail(w, "create route", err)
		return
	}
	writeJSON(w, nethttp.StatusCreated, route)
}

func (a *routeAPI) update(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req routes.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	route, err := a.repo.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, "update route", err)
		return
	}
	writeJSON(w, nethttp.StatusOK, route)
}

func (a *routeAPI) delete(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := a.repo.Delete(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, "delete route", err)
		return
	}
	w.WriteHeader(nethttp.StatusNoContent)
}

// geoJSONDocument covers the three accepted import shapes: a Feature, a
// FeatureCollection whose first LineString feature is used, or a bare geometry.
type geoJSONDocument struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometry    *geoJSONDocument  `json:"geometry"`
	Properties  map[string]any    `json:"properties"`
	Features    []geoJSONDocument `json:"features"`
}

func (d geoJSONDocument) lineString() (routes.Geometry, string, bool) {
	switch d.Type {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(d.Coordinates, &coords); err != nil {
			return routes.Geometry{}, "", false
		}
		return routes.Geometry{Type: d.Type, Coordinates: coords}, "", true
	case "Feature":
		if d.Geometry == nil {
			return routes.Geometry{}, "", false
		}
		geometry, _, ok := d.Geometry.lineString()
		if !ok {
			return routes.Geometry{}, "", false
		}
		name, _ := d.Properties["name"].(string)
		return geometry, name, true
	case "FeatureCollection":
		for _, feature := range d.Features {
			if geometry, name, ok := feature.lineString(); ok {
				return geometry, name, true
			}
		}
	}
	return routes.Geometry{}, "", false
}

// importGeoJSON creates a route from an uploaded GeoJSON document. The name
// comes from the name query parameter, then the feature properties.
func (a *routeAPI) importGeoJSON(w nethttp.ResponseWriter, r *nethttp.Request) {
	data, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, maxRouteBody))
	if err != nil {
		writeError(w, nethttp.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if !isJSON(data) {
		writeError(w, nethttp.StatusUnsupportedMediaType, messageExpectedJSON)
		return
	}
	var doc geoJSONDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		writeError(w, nethttp.StatusBadRequest, messageInvalidPayload)
		return
	}
	geometry, name, ok := doc.lineString()
	if !ok {
		writeError(w, nethttp.StatusBadRequest, "document contains no LineString")
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("name")); q != "" {
		name = q
	}
	if strings.TrimSpace(name) == "" {
		name = "Imported route"
	}
	route, err := a.repo.Create(r.Context(), routes.CreateRequest{Name: name, Geometry: geometry})
	if err != nil {
		a.fail(w, "import route", err)
		return
	}
	writeJSON(w, nethttp.StatusCreated, route)
}

func isJSON(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("application/json") {
			return true
		}
	}
	return false
}

func (a *routeAPI) fail(w nethttp.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, routes.ErrNotFound):
		writeError(w, nethttp.StatusNotFound, messageRouteNotFound)
	case errors.Is(err, routes.ErrInvalid):
		writeError(w, nethttp.StatusBadRequest, err.Error())
	default:
		a.logger.Printf("%s failed: %v", op, err)
		writeError(w, nethttp.StatusInternalServerError, messageInternalError)
	}
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, dst any) bool {
	decoder := json.NewDecoder(nethttp.MaxBytesReader(w, r.Body, maxRouteBody))
	if err := decoder.Decode(dst); err != nil {
		writeError(w, nethttp.StatusBadRequest, fmt.Sprintf("%s: %v", messageInvalidPayload, err))
		return false
	}
	return true
}

type roomAPI struct {
	hub *server.Hub
}

type roomStateJSON struct {
	RouteID         string    `json:"routeId"`
	Index           int       `json:"index"`
	Position        geo.Point `json:"position"`
	Speed           float64   `json:"speed"`
	Playing         bool      `json:"playing"`
	SubscriberCount int       `json:"subscriberCount"`
}

func (a *roomAPI) list(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, a.hub.Snapshot())
}

// control applies start, pause or reset to a live room on behalf of an operator.
func (a *roomAPI) control(w nethttp.ResponseWriter, r *nethttp.Request) {
	routeID := r.PathValue("routeId")
	var err error
	switch r.PathValue("action") {
	case "start":
		err = a.hub.StartRoom(routeID, server.ByOperator)
	case "pause":
		err = a.hub.PauseRoom(routeID, server.ByOperator)
	case "reset":
		err = a.hub.ResetRoom(routeID, server.ByOperator)
	default:
		nethttp.NotFound(w, r)
		return
	}
	if errors.Is(err, server.ErrNoActiveRoom) {
		writeError(w, nethttp.StatusNotFound, messageNoActiveRoom)
		return
	}
	state, ok := a.hub.RoomState(routeID)
	if !ok {
		writeError(w, nethttp.StatusNotFound, messageNoActiveRoom)
		return
	}
	writeJSON(w, nethttp.StatusOK, roomStateJSON{
		RouteID:         state.RouteID,
		Index:           state.Index,
		Position:        state.Position,
		Speed:           state.Speed,
		Playing:         state.Playing,
		SubscriberCount: state.SubscriberCount,
	})
}
