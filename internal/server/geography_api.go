package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/ports"
)

var geoEntities = map[string]ports.GeoEntity{
	"countries":      ports.GeoCountry,
	"states":         ports.GeoState,
	"municipalities": ports.GeoMunicipality,
	"cities":         ports.GeoCity,
}

func geoEntityFromPath(r *http.Request) (ports.GeoEntity, bool) {
	entity, ok := geoEntities[r.PathValue("entity")]
	return entity, ok
}

type geoPayload struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func geoPayloadFrom(rec ports.HubRecord) geoPayload {
	return geoPayload{Key: rec.Key, Name: rec.Name}
}

func (h *apiHandlers) createGeo(w http.ResponseWriter, r *http.Request) {
	entity, ok := geoEntityFromPath(r)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown geography entity")
		return
	}

	var payload geoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}
	rec := ports.HubRecord{Key: strings.TrimSpace(payload.Key), Name: strings.TrimSpace(payload.Name)}
	if rec.Key == "" || rec.Name == "" {
		writeErrorMessage(w, http.StatusBadRequest, "key and name required")
		return
	}

	created, err := h.inv.CreateGeo(r.Context(), tenantInfo(r.Context()), entity, rec, h.origin)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, geoPayloadFrom(created))
}

// getGeo looks the record up by key, or by name when ?by=name is given.
func (h *apiHandlers) getGeo(w http.ResponseWriter, r *http.Request) {
	entity, ok := geoEntityFromPath(r)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown geography entity")
		return
	}

	var (
		rec   ports.HubRecord
		found bool
		err   error
	)
	if r.URL.Query().Get("by") == "name" {
		rec, found, err = h.inv.GeoByName(r.Context(), tenantInfo(r.Context()), entity, r.PathValue("key"))
	} else {
		rec, found, err = h.inv.GetGeo(r.Context(), tenantInfo(r.Context()), entity, r.PathValue("key"))
	}
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	if !found {
		writeErrorMessage(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, geoPayloadFrom(rec))
}

func (h *apiHandlers) listGeo(w http.ResponseWriter, r *http.Request) {
	entity, ok := geoEntityFromPath(r)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown geography entity")
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad listing parameters")
		return
	}

	env, err := h.inv.ListGeo(r.Context(), tenantInfo(r.Context()), entity, opts)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponseFrom(env, geoPayloadFrom))
}
