package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrelgrid/device-inventory/modules/inventory/domain/types"
)

type devicePayload struct {
	DeviceKey    string  `json:"device_key"`
	Vendor       *string `json:"vendor,omitempty"`
	SerialNumber *string `json:"serial_number,omitempty"`

	Hostname    *string `json:"hostname,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`

	Cypher           *string `json:"cypher,omitempty"`
	HostKeyAlgorithm *string `json:"host_key_algorithm,omitempty"`
	MAC              *string `json:"mac,omitempty"`
	DeviceType       *string `json:"device_type,omitempty"`
}

func (p devicePayload) toDevice() types.Device {
	return types.Device{
		DeviceKey:        strings.TrimSpace(p.DeviceKey),
		Vendor:           p.Vendor,
		SerialNumber:     p.SerialNumber,
		Hostname:         p.Hostname,
		Description:      p.Description,
		Status:           p.Status,
		Cypher:           p.Cypher,
		HostKeyAlgorithm: p.HostKeyAlgorithm,
		MAC:              p.MAC,
		DeviceType:       p.DeviceType,
	}
}

func devicePayloadFrom(d types.Device) devicePayload {
	return devicePayload{
		DeviceKey:        d.DeviceKey,
		Vendor:           d.Vendor,
		SerialNumber:     d.SerialNumber,
		Hostname:         d.Hostname,
		Description:      d.Description,
		Status:           d.Status,
		Cypher:           d.Cypher,
		HostKeyAlgorithm: d.HostKeyAlgorithm,
		MAC:              d.MAC,
		DeviceType:       d.DeviceType,
	}
}

func (h *apiHandlers) createDevice(w http.ResponseWriter, r *http.Request) {
	var payload devicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad json")
		return
	}
	device := payload.toDevice()
	if device.DeviceKey == "" {
		writeErrorMessage(w, http.StatusBadRequest, "device_key required")
		return
	}

	created, err := h.inv.CreateDevice(r.Context(), tenantInfo(r.Context()), device, h.origin)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, devicePayloadFrom(created))
}

func (h *apiHandlers) getDevice(w http.ResponseWriter, r *http.Request) {
	device, ok, err := h.inv.GetDevice(r.Context(), tenantInfo(r.Context()), r.PathValue("key"))
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, devicePayloadFrom(device))
}

// listDevices pages through all devices, or hydrates an explicit key set
// when ?keys= is given.
func (h *apiHandlers) listDevices(w http.ResponseWriter, r *http.Request) {
	if v := strings.TrimSpace(r.URL.Query().Get("keys")); v != "" {
		devices, err := h.inv.DevicesByKeys(r.Context(), tenantInfo(r.Context()), splitList(v))
		if err != nil {
			writeOpError(w, h.log, err)
			return
		}
		records := make([]devicePayload, 0, len(devices))
		for _, d := range devices {
			records = append(records, devicePayloadFrom(d))
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad listing parameters")
		return
	}

	env, err := h.inv.ListDevices(r.Context(), tenantInfo(r.Context()), opts)
	if err != nil {
		writeOpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponseFrom(env, devicePayloadFrom))
}
