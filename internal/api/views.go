package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/generator"
	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/mindmap"
	"github.com/foxhui123/AutoQA/internal/suite"
	"github.com/foxhui123/AutoQA/internal/view"
)

// MaxImageBytes bounds an uploaded flowchart
const MaxImageBytes = 20 << 20

// CreateViewRequest is the request body for creating a view
type CreateViewRequest struct {
	Kind string `json:"kind"` // new-requirement, legacy-requirement or flowchart
}

// GenerateRequest is the JSON body for text generation
type GenerateRequest struct {
	Requirements string `json:"requirements"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`

	Language   string `json:"language,omitempty"`
	EdgeCases  *bool  `json:"edge_cases,omitempty"`
	ErrorPaths *bool  `json:"error_paths,omitempty"`
}

// GenerateResponse acknowledges a background generation
type GenerateResponse struct {
	ViewID string      `json:"view_id"`
	Token  string      `json:"token"`
	Status view.Status `json:"status"`
}

// TableResponse is the tabular result view
type TableResponse struct {
	FeatureName string     `json:"feature_name"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
}

// MindmapResponse is the laid-out mind map with its viewport
type MindmapResponse struct {
	Diagram   *mindmap.Diagram  `json:"diagram"`
	Transform mindmap.Transform `json:"transform"`
	Selected  *suite.Scenario   `json:"selected,omitempty"`
}

// ViewportRequest resizes the canvas and optionally replaces the transform
type ViewportRequest struct {
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	Transform *mindmap.Transform `json:"transform,omitempty"`
}

// PanRequest moves the viewport by a screen-space delta
type PanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ZoomRequest scales the viewport around a screen point
type ZoomRequest struct {
	Factor float64 `json:"factor"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// ClickRequest hit-tests a screen point
type ClickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectionResponse reports the scenario in the detail panel
type SelectionResponse struct {
	Selected bool            `json:"selected"`
	Scenario *suite.Scenario `json:"scenario,omitempty"`
}

func (s *Server) viewFromRequest(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	id := chi.URLParam(r, "viewID")
	v, ok := s.views.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "view not found")
		return nil, false
	}
	return v, true
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	var req CreateViewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	tab, err := view.ParseTab(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "kind must be new-requirement, legacy-requirement or flowchart")
		return
	}

	v := s.views.Create(tab)
	respondJSON(w, http.StatusCreated, v.State())
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	views := s.views.List()
	states := make([]view.State, 0, len(views))
	for _, v := range views {
		states = append(states, v.State())
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"views": states})
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, v.State())
}

func (s *Server) deleteView(w http.ResponseWriter, r *http.Request) {
	if !s.views.Remove(chi.URLParam(r, "viewID")) {
		respondError(w, http.StatusNotFound, "view not found")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) resetView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}
	v.Reset()
	respondJSON(w, http.StatusOK, v.State())
}

// generate starts a background generation for the view.
// Text views take a JSON body; image views take a multipart form.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	var (
		run func(ctx context.Context) (*generator.Result, error)
		err error
	)
	if v.Kind() == llm.InputImage {
		run, err = s.imageJob(w, r)
	} else {
		run, err = s.textJob(r)
	}
	if err != nil {
		respondErr(w, err)
		return
	}

	token, err := v.Begin()
	if err != nil {
		respondErr(w, err)
		return
	}

	// The generation outlives the request; only the view token decides whether it lands
	ctx := context.WithoutCancel(r.Context())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		res, err := run(ctx)
		var result *suite.TestSuite
		if res != nil {
			result = res.Suite
		}

		if !v.Complete(token, result, err) {
			log.Info().Str("view", v.ID()).Str("token", token).Msg("view moved on, result discarded")
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("view", v.ID()).Msg("generation failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, GenerateResponse{
		ViewID: v.ID(),
		Token:  token,
		Status: view.StatusPending,
	})
}

func (s *Server) textJob(r *http.Request) (func(context.Context) (*generator.Result, error), error) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errInvalidBody
	}
	if strings.TrimSpace(req.Requirements) == "" {
		return nil, llm.ErrEmptyRequirements
	}

	sel, err := selection(req.Provider, req.Model, req.Endpoint)
	if err != nil {
		return nil, err
	}

	opts := s.prompt
	if req.Language != "" {
		opts.Language = req.Language
	}
	if req.EdgeCases != nil {
		opts.EdgeCases = *req.EdgeCases
	}
	if req.ErrorPaths != nil {
		opts.ErrorPaths = *req.ErrorPaths
	}

	g := generator.NewGenerator(s.adapter, opts)
	return func(ctx context.Context) (*generator.Result, error) {
		return g.FromText(ctx, req.Requirements, sel)
	}, nil
}

func (s *Server) imageJob(w http.ResponseWriter, r *http.Request) (func(context.Context) (*generator.Result, error), error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", generator.ErrInvalidImage, err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image field is required", generator.ErrInvalidImage)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", generator.ErrInvalidImage, MaxImageBytes)
	}

	mimeType, err := generator.ImageType(data, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	sel, err := selection(r.FormValue("provider"), r.FormValue("model"), r.FormValue("endpoint"))
	if err != nil {
		return nil, err
	}

	opts := s.prompt
	if lang := r.FormValue("language"); lang != "" {
		opts.Language = lang
	}

	note := r.FormValue("additional_text")
	g := generator.NewGenerator(s.adapter, opts)
	return func(ctx context.Context) (*generator.Result, error) {
		return g.FromImage(ctx, data, mimeType, note, sel)
	}, nil
}

func selection(provider, model, endpoint string) (llm.Selection, error) {
	sel := llm.Selection{Model: model, Endpoint: endpoint}
	if provider == "" {
		return sel, nil
	}
	kind, err := llm.ParseProviderKind(provider)
	if err != nil {
		return sel, llm.NewError(llm.KindUnsupportedCapability, "", err, "unknown provider %q", provider)
	}
	sel.Kind = kind
	return sel, nil
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	ts := v.Suite()
	table := suite.Table(ts)
	resp := TableResponse{Headers: table[0], Rows: table[1:]}
	if ts != nil {
		resp.FeatureName = ts.FeatureName
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getMindmap(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, mindmapResponse(v))
}

func (s *Server) getMindmapSVG(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	if err := v.RenderSVG(w); err != nil {
		log.Error().Err(err).Str("view", v.ID()).Msg("failed to render mind map")
	}
}

func mindmapResponse(v *view.View) MindmapResponse {
	d, t := v.Diagram()
	resp := MindmapResponse{Diagram: d, Transform: t}
	if sc, ok := v.Selected(); ok {
		resp.Selected = &sc
	}
	return resp
}

func (s *Server) setViewport(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		respondError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}

	v.Resize(req.Width, req.Height)
	if req.Transform != nil {
		v.SetTransform(*req.Transform)
	}
	respondJSON(w, http.StatusOK, mindmapResponse(v))
}

func (s *Server) pan(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	var req PanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, v.Pan(req.DX, req.DY))
}

func (s *Server) zoom(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	var req ZoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Factor <= 0 {
		respondError(w, http.StatusBadRequest, "factor must be positive")
		return
	}
	respondJSON(w, http.StatusOK, v.Zoom(req.Factor, req.X, req.Y))
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	var req ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc, hit := v.Click(req.X, req.Y)
	resp := SelectionResponse{Selected: hit}
	if hit {
		resp.Scenario = &sc
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getSelection(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	resp := SelectionResponse{}
	if sc, hit := v.Selected(); hit {
		resp.Selected = true
		resp.Scenario = &sc
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) dismissSelection(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}
	v.Dismiss()
	respondJSON(w, http.StatusNoContent, nil)
}

// export downloads the view's suite in one of the registered formats
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewFromRequest(w, r)
	if !ok {
		return
	}

	e, err := s.emitters.Get(chi.URLParam(r, "format"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	ts := v.Suite()
	if ts == nil {
		respondError(w, http.StatusConflict, "view has no test suite to export")
		return
	}

	w.Header().Set("Content-Type", e.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": e.FileName(ts)}))
	w.WriteHeader(http.StatusOK)
	if err := e.Emit(w, ts); err != nil {
		log.Error().Err(err).Str("view", v.ID()).Str("format", e.Name()).Msg("export failed")
	}
}
