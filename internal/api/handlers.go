// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tilegate/internal/provider"
	"github.com/tomtom215/tilegate/internal/render"
	"github.com/tomtom215/tilegate/internal/surrogate"
	"github.com/tomtom215/tilegate/internal/template"
	"github.com/tomtom215/tilegate/internal/validation"
)

// maxTemplateBody bounds template and instantiation request bodies.
const maxTemplateBody = 2 << 20 // 2MB

// Handler implements the named-map endpoints.
type Handler struct {
	store    *template.Store
	cache    *provider.Cache
	resolver render.Resolver
}

// NewHandler wires the template endpoints to their collaborators.
func NewHandler(store *template.Store, cache *provider.Cache, resolver render.Resolver) *Handler {
	return &Handler{store: store, cache: cache, resolver: resolver}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateBody+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxTemplateBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxTemplateBody)
	}
	return data, nil
}

// CreateTemplate handles POST /api/v1/map/named.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := template.Parse(body)
	if err != nil {
		respondTemplateError(w, err)
		return
	}

	id, _, err := h.store.Add(r.Context(), owner, tpl)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"template_id": id})
}

// ListTemplates handles GET /api/v1/map/named.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())

	ids, err := h.store.List(r.Context(), owner)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"template_ids": ids})
}

// GetTemplate handles GET /api/v1/map/named/{template_id}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	id := chi.URLParam(r, "template_id")

	tpl, err := h.store.Get(r.Context(), owner, id)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]*template.Template{"template": tpl})
}

// UpdateTemplate handles PUT /api/v1/map/named/{template_id}.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	id := chi.URLParam(r, "template_id")

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := template.Parse(body)
	if err != nil {
		respondTemplateError(w, err)
		return
	}

	if _, err := h.store.Update(r.Context(), owner, id, tpl); err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"template_id": id})
}

// DeleteTemplate handles DELETE /api/v1/map/named/{template_id}.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	id := chi.URLParam(r, "template_id")

	if err := h.store.Delete(r.Context(), owner, id); err != nil {
		respondTemplateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// instantiateRequest is the POST body for template instantiation. The
// placeholder values arrive as a free-form object; rendering options arrive
// as validated scalar fields.
type instantiateRequest struct {
	Params      map[string]interface{} `json:"params"`
	Styles      map[string]string      `json:"styles"`
	Format      string                 `json:"format" validate:"omitempty,tile_format"`
	Layer       string                 `json:"layer"`
	ScaleFactor float64                `json:"scale_factor" validate:"omitempty,gte=1,lte=8"`
}

// decodeInstantiateRequest accepts both the structured body and, for
// backward compatibility, a bare placeholder-values object.
func decodeInstantiateRequest(body []byte) (*instantiateRequest, error) {
	if len(body) == 0 {
		return &instantiateRequest{}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("instantiation body must be a JSON object: %w", err)
	}

	structured := false
	for _, key := range []string{"params", "styles", "format", "layer", "scale_factor"} {
		if _, ok := probe[key]; ok {
			structured = true
			break
		}
	}

	req := &instantiateRequest{}
	if structured {
		if err := json.Unmarshal(body, req); err != nil {
			return nil, fmt.Errorf("invalid instantiation body: %w", err)
		}
		return req, nil
	}

	if err := json.Unmarshal(body, &req.Params); err != nil {
		return nil, fmt.Errorf("invalid instantiation params: %w", err)
	}
	return req, nil
}

// InstantiateTemplate handles POST /api/v1/map/named/{template_id}. This is
// the public path: access is gated by the template's own auth policy (via
// the auth_token query parameter), not by the admin authenticator.
func (h *Handler) InstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	id := chi.URLParam(r, "template_id")

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeInstantiateRequest(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.resolver.Resolve(r.Context(), owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, render.ScrubConnInfo(err.Error()))
		return
	}

	p := h.cache.Get(owner, id, provider.Request{
		DBName:      conn.DBName,
		AuthTokens:  r.URL.Query()["auth_token"],
		Params:      req.Params,
		Styles:      req.Styles,
		Format:      req.Format,
		Layer:       req.Layer,
		ScaleFactor: req.ScaleFactor,
	})

	cfg, err := p.MapConfig(r.Context())
	if err != nil {
		respondTemplateError(w, err)
		return
	}

	layergroupID, err := buildLayergroupID(owner, cfg, req.Params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	surrogate.AddHeader(w.Header(), surrogate.NamedMapTag{Owner: owner, Name: id})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"layergroupid": layergroupID,
		"metadata": map[string]interface{}{
			"layers": layerMetadata(cfg),
		},
	})
}

// buildLayergroupID derives the stable map identifier: the owner, the
// instantiated config fingerprint and the parameterization fingerprint.
func buildLayergroupID(owner string, cfg *template.MapConfig, params map[string]interface{}) (string, error) {
	cfgHash, err := template.ShortFingerprint(cfg)
	if err != nil {
		return "", fmt.Errorf("fingerprint map config: %w", err)
	}
	paramsHash, err := template.ShortFingerprint(params)
	if err != nil {
		return "", fmt.Errorf("fingerprint params: %w", err)
	}
	return owner + "@" + cfgHash + "@" + paramsHash, nil
}

func layerMetadata(cfg *template.MapConfig) []map[string]string {
	out := make([]map[string]string, len(cfg.Layers))
	for i, layer := range cfg.Layers {
		typ := layer.Type
		if typ == "" {
			typ = "cartodb"
		}
		out[i] = map[string]string{"id": "layer" + strconv.Itoa(i), "type": typ}
	}
	return out
}
