package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
	"github.com/kestrelgrid/device-inventory/modules/inventory/services"
	"github.com/kestrelgrid/device-inventory/pkg/paging"
)

type sitePayload struct {
	SiteKey      string   `json:"site_key"`
	Name         string   `json:"name"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Address      *string  `json:"address,omitempty"`
	ZipCode      *string  `json:"zip_code,omitempty"`
	Country      *string  `json:"country,omitempty"`
	State        *string  `json:"state,omitempty"`
	Municipality *string  `json:"municipality,omitempty"`
	City         *string  `json:"city,omitempty"`
}

type siteResponse struct {
	sitePayload
	Devices []devicePayload `json:"devices"`
}

func (p sitePayload) toSite() types.Site {
	return types.Site{
		SiteKey:      strings.TrimSpace(p.SiteKey),
		Name:         strings.TrimSpace(p.Name),
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Address:      p.Address,
		ZipCode:      p.ZipCode,
		Country:      p.Country,
		State:        p.State,
		Municipality: p.Municipality,
		City:         p.City,
	}
}

func siteResponseFrom(d types.SiteDetail) siteResponse {
	devices := make([]devicePayload, 0, len(d.Devices))
	for _, dev := range d.Devices {
		devices = append(devices, devicePayloadFrom(dev))
	}
	return siteResponse{
		sitePayload: sitePayload{
			SiteKey:      d.Site.SiteKey,
			Name:         d.Site.Name,
			Latitude:     d.Site.Latitude,
			Longitude:    d.Site.Longitude,
			Address:      d.Site.Address,
			ZipCode:      d.Site.ZipCode,
			Country:      d.Site.Country,
			State:        d.Site.State,
			Municipality: d.Site.Municipality,
			City:         d.Site.City,
		},
		Devices: devices,
	}
}

// pageResponse is the JSON shape of every listing endpoint.
type pageResponse[T any] struct {
	Records         []T  `json:"records"`
	TotalRecords    int  `json:"total_records"`
	Page            int  `json:"page"`
	TotalPages      int  `json:"total_pages"`
	HasPreviousPage bool `json:"has_previous_page"`
	HasNextPage     bool `json:"has_next_page"`
}

func pageResponseFrom[T, U any](env services.PageEnvelope[T], convert func(T) U) pageResponse[U] {
	records := make([]U, 0, len(env.Records))
	for _, r := range env.Records {
		records = append(records, convert(r))
	}
	return pageResponse[U]{
		Records:         records,
		TotalRecords:    env.TotalRecords,
		Page:            env.Page,
		TotalPages:      env.TotalPages,
		HasPreviousPage: env.HasPreviousPage,
		HasNextPage:     env.HasNextPage,
	}
}

// listOptionsFromQuery reads page, page_size, sort and order. sort and
// order are comma-separated positional pairs. Absent page defaults to the
// first page; absent page_size disables pagination.
func listOptionsFromQuery(r *http.Request) (types.ListOptions, error) {
	opts := types.ListOptions{Page: 1, PageSize: paging.Unlimited}

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.ListOptions{}, err
		}
		opts.Page = n
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.ListOptions{}, err
		}
		opts.PageSize = n
	}
	if v := strings.TrimSpace(q.Get("sort")); v != "" {
		opts.SortColumns = splitList(v)
	}
	if v := strings.TrimSpace(q.Get("order")); v != "" {
		opts.SortDirections = splitList(v)
	}
	return opts, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *apiHandlers) createSite(w http.ResponseWriter, r *http.Request) {
	var payload sitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}
	site := payload.toSite()
	if site.SiteKey == "" || site.Name == "" {
		writeErrorMessage(w, http.StatusBadRequest, "site_key and name required")
		return
	}

	detail, err := h.inv.CreateSite(r.Context(), tenantInfo(r.Context()), site, h.origin)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, siteResponseFrom(detail))
}

func (h *apiHandlers) getSite(w http.ResponseWriter, r *http.Request) {
	detail, ok, err := h.inv.GetSite(r.Context(), tenantInfo(r.Context()), r.PathValue("key"))
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, siteResponseFrom(detail))
}

func (h *apiHandlers) listSites(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad listing parameters")
		return
	}

	env, err := h.inv.ListSites(r.Context(), tenantInfo(r.Context()), opts)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponseFrom(env, siteResponseFrom))
}

func (h *apiHandlers) editSite(w http.ResponseWriter, r *http.Request) {
	var payload sitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}

	key := r.PathValue("key")
	detail, ok, err := h.inv.EditSite(r.Context(), tenantInfo(r.Context()), key, payload.toSite(), h.origin)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, siteResponseFrom(detail))
}

func (h *apiHandlers) deleteSite(w http.ResponseWriter, r *http.Request) {
	ok, err := h.inv.DeleteSite(r.Context(), tenantInfo(r.Context()), r.PathValue("key"))
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "site not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type siteDevicesPayload struct {
	DeviceKeys []string `json:"device_keys"`
}

func (h *apiHandlers) addDevices(w http.ResponseWriter, r *http.Request) {
	var payload siteDevicesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(payload.DeviceKeys) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "device_keys required")
		return
	}

	detail, err := h.inv.AddDevicesToSite(r.Context(), tenantInfo(r.Context()), r.PathValue("key"), payload.DeviceKeys, h.origin)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, siteResponseFrom(detail))
}

func (h *apiHandlers) removeDevices(w http.ResponseWriter, r *http.Request) {
	var payload siteDevicesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(payload.DeviceKeys) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "device_keys required")
		return
	}

	detail, err := h.inv.RemoveDevicesFromSite(r.Context(), tenantInfo(r.Context()), r.PathValue("key"), payload.DeviceKeys)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, siteResponseFrom(detail))
}
