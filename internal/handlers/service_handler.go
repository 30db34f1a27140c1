package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fleetbench/internal/common"
	"github.com/ternarybob/fleetbench/internal/interfaces"
	"github.com/ternarybob/fleetbench/internal/models"
)

// ServiceHandler serves the service API: CRUD plus the manual scaling
// operations.
type ServiceHandler struct {
	storage interfaces.StorageManager
	scalers interfaces.ScalerRegistry
	logger  arbor.ILogger
}

func NewServiceHandler(storage interfaces.StorageManager, scalers interfaces.ScalerRegistry) *ServiceHandler {
	return &ServiceHandler{
		storage: storage,
		scalers: scalers,
		logger:  common.GetLogger(),
	}
}

// ServiceInput is the create/update payload.
type ServiceInput struct {
	Name         string              `json:"name"`
	ProviderType models.ProviderType `json:"provider_type"`
	Topics       []string            `json:"topics"`
	Cluster      string              `json:"cluster,omitempty"`
	Region       string              `json:"region,omitempty"`
	IsEnabled    *bool               `json:"is_enabled,omitempty"`
}

// ScaleInput carries the manual scaling amount.
type ScaleInput struct {
	Amount int `json:"amount"`
}

// ServicesHandler handles /api/services: GET lists, POST creates.
func (h *ServiceHandler) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listServices(w, r)
	case http.MethodPost:
		h.createService(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServiceRoutes handles /api/services/{id} and the nested scale routes.
func (h *ServiceHandler) ServiceRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/services/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// /api/services/scale/down/all
	if len(parts) == 3 && parts[0] == "scale" && parts[1] == "down" && parts[2] == "all" {
		if !RequireMethod(w, r, "POST") {
			return
		}
		h.scaleDownAll(w, r)
		return
	}

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.serviceByID(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "scale" && parts[2] == "up":
		if !RequireMethod(w, r, "POST") {
			return
		}
		h.scale(w, r, parts[0], true)
	case len(parts) == 3 && parts[1] == "scale" && parts[2] == "down":
		if !RequireMethod(w, r, "POST") {
			return
		}
		h.scale(w, r, parts[0], false)
	case len(parts) == 3 && parts[1] == "scale" && parts[2] == "info":
		if !RequireMethod(w, r, "GET") {
			return
		}
		h.scaleInfo(w, r, parts[0])
	default:
		WriteError(w, http.StatusNotFound, "Not Found")
	}
}

func (h *ServiceHandler) serviceByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		h.getService(w, r, id)
	case http.MethodPut:
		h.updateService(w, r, id)
	case http.MethodDelete:
		h.deleteService(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ServiceHandler) validateInput(input *ServiceInput) string {
	if input.Name == "" {
		return "Field 'name' cannot be empty"
	}
	if len(input.Topics) == 0 {
		return "Field 'topics' cannot be empty"
	}
	switch input.ProviderType {
	case models.ProviderLocalContainer:
	case models.ProviderCloudContainer:
		if input.Cluster == "" {
			return "Field 'cluster' is required"
		}
		if input.Region == "" {
			return "Field 'region' is required"
		}
	default:
		return "Unknown provider type"
	}
	return ""
}

func (h *ServiceHandler) createService(w http.ResponseWriter, r *http.Request) {
	var input ServiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := h.validateInput(&input); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	service := models.NewService(input.Name, input.ProviderType, models.ServiceDetails{
		Cluster: input.Cluster,
		Region:  input.Region,
	}, input.Topics)
	if input.IsEnabled != nil {
		service.IsEnabled = *input.IsEnabled
	}

	if err := h.storage.Services().Save(r.Context(), service); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create service")
		WriteError(w, http.StatusInternalServerError, "Failed to create service")
		return
	}

	WriteJSON(w, http.StatusOK, service)
}

func (h *ServiceHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.storage.Services().List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list services")
		WriteError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}

	WriteJSON(w, http.StatusOK, services)
}

func (h *ServiceHandler) getService(w http.ResponseWriter, r *http.Request, id string) {
	service, err := h.storage.Services().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Service not found")
			return
		}
		h.logger.Error().Err(err).Str("service_id", id).Msg("Failed to get service")
		WriteError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}

	WriteJSON(w, http.StatusOK, service)
}

func (h *ServiceHandler) updateService(w http.ResponseWriter, r *http.Request, id string) {
	service, err := h.storage.Services().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Service not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}

	var input ServiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := h.validateInput(&input); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	service.Name = input.Name
	service.ProviderType = input.ProviderType
	service.Details = models.ServiceDetails{Cluster: input.Cluster, Region: input.Region}
	service.Topics = input.Topics
	if input.IsEnabled != nil {
		service.IsEnabled = *input.IsEnabled
	}

	if err := h.storage.Services().Save(r.Context(), service); err != nil {
		h.logger.Error().Err(err).Str("service_id", id).Msg("Failed to update service")
		WriteError(w, http.StatusInternalServerError, "Failed to update service")
		return
	}

	WriteJSON(w, http.StatusOK, service)
}

func (h *ServiceHandler) deleteService(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.storage.Services().Delete(r.Context(), id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Service not found")
			return
		}
		h.logger.Error().Err(err).Str("service_id", id).Msg("Failed to delete service")
		WriteError(w, http.StatusInternalServerError, "Failed to delete service")
		return
	}

	WriteSuccess(w, "Service deleted")
}

func (h *ServiceHandler) scale(w http.ResponseWriter, r *http.Request, id string, up bool) {
	service, scaler, ok := h.serviceWithScaler(w, r, id)
	if !ok {
		return
	}

	input := ScaleInput{Amount: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}
	if input.Amount <= 0 {
		WriteError(w, http.StatusBadRequest, "Field 'amount' must be positive")
		return
	}

	var err error
	if up {
		err = scaler.ScaleUp(r.Context(), service, input.Amount)
	} else {
		err = scaler.ScaleDown(r.Context(), service, input.Amount)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("service", service.Name).Msg("Failed to scale service")
		WriteError(w, http.StatusInternalServerError, "Failed to scale service")
		return
	}

	info, err := scaler.GetInfo(r.Context(), service)
	if err != nil {
		h.logger.Error().Err(err).Str("service", service.Name).Msg("Failed to read scaler info")
		WriteError(w, http.StatusInternalServerError, "Failed to read scaler info")
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

func (h *ServiceHandler) scaleInfo(w http.ResponseWriter, r *http.Request, id string) {
	service, scaler, ok := h.serviceWithScaler(w, r, id)
	if !ok {
		return
	}

	info, err := scaler.GetInfo(r.Context(), service)
	if err != nil {
		h.logger.Error().Err(err).Str("service", service.Name).Msg("Failed to read scaler info")
		WriteError(w, http.StatusInternalServerError, "Failed to read scaler info")
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

// scaleDownAll forces every service to zero instances regardless of its
// descale deadline.
func (h *ServiceHandler) scaleDownAll(w http.ResponseWriter, r *http.Request) {
	services, err := h.storage.Services().List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}

	failed := []string{}
	for _, service := range services {
		scaler, ok := h.scalers.Get(service.ProviderType)
		if !ok {
			failed = append(failed, service.Name)
			continue
		}
		if err := scaler.ScaleDown(r.Context(), service, math.MaxInt32); err != nil {
			h.logger.Error().Err(err).Str("service", service.Name).Msg("Failed to scale down service")
			failed = append(failed, service.Name)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scaled_down": len(services) - len(failed),
		"failed":      failed,
	})
}

func (h *ServiceHandler) serviceWithScaler(w http.ResponseWriter, r *http.Request, id string) (*models.Service, interfaces.ServiceScaler, bool) {
	service, err := h.storage.Services().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Service not found")
			return nil, nil, false
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get service")
		return nil, nil, false
	}

	scaler, ok := h.scalers.Get(service.ProviderType)
	if !ok {
		WriteError(w, http.StatusBadRequest, "No scaler registered for provider")
		return nil, nil, false
	}
	return service, scaler, true
}
