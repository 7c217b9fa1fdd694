package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/settings"
)

// SettingsResponse is the API view of the persisted settings
type SettingsResponse struct {
	Credential     string `json:"credential"`
	CredentialSet  bool   `json:"credential_set"`
	LocalModelURL  string `json:"local_model_url"`
	LocalModelName string `json:"local_model_name"`
}

// UpdateSettingsRequest is the request body for updating settings.
// Nil fields are left unchanged; blank values remove the key.
type UpdateSettingsRequest struct {
	Credential     *string `json:"credential,omitempty"`
	LocalModelURL  *string `json:"local_model_url,omitempty"`
	LocalModelName *string `json:"local_model_name,omitempty"`
}

// UsageResponse wraps usage statistics and optionally the latest records
type UsageResponse struct {
	llm.UsageStats
	Recent []llm.UsageRecord `json:"recent,omitempty"`
}

func (s *Server) settingsResponse(r *http.Request) (*SettingsResponse, error) {
	values, err := settings.Snapshot(r.Context(), s.store)
	if err != nil {
		return nil, err
	}

	resp := &SettingsResponse{
		Credential:     settings.Mask(values[settings.KeyCredential]),
		CredentialSet:  values[settings.KeyCredential] != "",
		LocalModelURL:  values[settings.KeyLocalModelURL],
		LocalModelName: values[settings.KeyLocalModelName],
	}
	if resp.LocalModelURL == "" {
		resp.LocalModelURL = settings.DefaultLocalModelURL
	}
	if resp.LocalModelName == "" {
		resp.LocalModelName = settings.DefaultLocalModelName
	}
	return resp, nil
}

// getSettings returns the settings with the credential masked
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settingsResponse(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// updateSettings writes the given settings
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := []struct {
		key   string
		value *string
	}{
		{settings.KeyCredential, req.Credential},
		{settings.KeyLocalModelURL, req.LocalModelURL},
		{settings.KeyLocalModelName, req.LocalModelName},
	}
	for _, u := range updates {
		if u.value == nil {
			continue
		}
		if err := settings.Save(r.Context(), s.store, u.key, *u.value); err != nil {
			respondErr(w, err)
			return
		}
		log.Info().Str("key", u.key).Msg("setting updated")
	}

	resp, err := s.settingsResponse(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// listProviders returns every provider kind with its availability
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"default":   s.adapter.DefaultProvider(),
		"providers": s.adapter.Providers(r.Context()),
	})
}

// getUsage returns provider usage statistics; ?recent=N adds the last N calls
func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	resp := UsageResponse{UsageStats: s.adapter.Usage().Stats()}

	if v := r.URL.Query().Get("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "recent must be a non-negative integer")
			return
		}
		resp.Recent = s.adapter.Usage().RecentRecords(n)
	}

	respondJSON(w, http.StatusOK, resp)
}

// listFormats returns the export formats
func (s *Server) listFormats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"formats": s.emitters.List()})
}
