package server

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/matzehuels/nugallery/pkg/buildinfo"
	"github.com/matzehuels/nugallery/pkg/clrmeta"
	"github.com/matzehuels/nugallery/pkg/errors"
	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/graph"
	"github.com/matzehuels/nugallery/pkg/nuget"
	"github.com/matzehuels/nugallery/pkg/render/nodelink"
)

// =============================================================================
// Response Types
// =============================================================================

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type assemblySummary struct {
	File string `json:"file"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type frameworkSummary struct {
	Moniker         string             `json:"moniker"`
	SizeInBytes     int64              `json:"size_in_bytes"`
	Dependencies    []nuget.Dependency `json:"dependencies"`
	Assemblies      []assemblySummary  `json:"assemblies"`
	BuildAssemblies []assemblySummary  `json:"build_assemblies,omitempty"`
	Docs            []string           `json:"docs,omitempty"`
}

type packageResponse struct {
	ID          string             `json:"id"`
	Version     string             `json:"version"`
	Authors     string             `json:"authors,omitempty"`
	Description string             `json:"description,omitempty"`
	ProjectURL  string             `json:"project_url,omitempty"`
	IconURL     string             `json:"icon_url,omitempty"`
	DownloadURL string             `json:"download_url"`
	SizeInBytes int64              `json:"size_in_bytes"`
	Frameworks  []frameworkSummary `json:"frameworks"`
}

type frameworkResponse struct {
	Package string `json:"package"`
	Version string `json:"version"`
	frameworkSummary
}

type typeSummary struct {
	FullName string `json:"full_name"`
	Summary  string `json:"summary,omitempty"`
}

type assemblyResponse struct {
	Package    string                      `json:"package"`
	Version    string                      `json:"version"`
	Framework  string                      `json:"framework"`
	File       string                      `json:"file"`
	Path       string                      `json:"path"`
	Size       int64                       `json:"size"`
	Name       string                      `json:"name"`
	FullName   string                      `json:"full_name"`
	Runtime    string                      `json:"runtime,omitempty"`
	References []nuget.ReferenceResolution `json:"references"`
	Types      []typeSummary               `json:"types"`
}

type resolveResponse struct {
	Name      string `json:"name"`
	Package   string `json:"package"`
	Version   string `json:"version"`
	Framework string `json:"framework"`
	File      string `json:"file"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Get()})
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gallery.Stats())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.gallery.Search(r.Context(), r.URL.Query().Get("q"))
	if err == nil {
		err = res.Err
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	pv, err := s.gallery.Versions(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		err = pv.Err
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.gallery.Package(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version"))
	if err == nil {
		err = pkg.Err
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packageResponse{
		ID:          pkg.ID,
		Version:     pkg.Version,
		Authors:     pkg.AuthorsOrOwners(),
		Description: pkg.Description,
		ProjectURL:  pkg.ProjectURL,
		IconURL:     pkg.IconURL,
		DownloadURL: pkg.DownloadURL,
		SizeInBytes: pkg.SizeInBytes,
		Frameworks:  lo.Map(pkg.TargetFrameworks, func(tf *nuget.TargetFramework, _ int) frameworkSummary { return summarize(tf) }),
	})
}

func (s *Server) handleFramework(w http.ResponseWriter, r *http.Request) {
	tf, err := s.gallery.Framework(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version"), chi.URLParam(r, "framework"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frameworkResponse{
		Package:          tf.Package().ID,
		Version:          tf.Package().Version,
		frameworkSummary: summarize(tf),
	})
}

func (s *Server) handleAssembly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.gallery.Assembly(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "version"),
		chi.URLParam(r, "framework"), chi.URLParam(r, "assembly"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	def, err := a.Definition()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tf := a.Framework()
	docs := tf.Docs(def.Name)
	writeJSON(w, http.StatusOK, assemblyResponse{
		Package:    tf.Package().ID,
		Version:    tf.Package().Version,
		Framework:  tf.Moniker,
		File:       a.FileName,
		Path:       a.Path,
		Size:       a.Size,
		Name:       def.Name,
		FullName:   def.FullName(),
		Runtime:    def.RuntimeVersion,
		References: def.ResolveAll(ctx),
		Types: lo.Map(def.PublicTypes(), func(t clrmeta.Type, _ int) typeSummary {
			ts := typeSummary{FullName: t.FullName()}
			if docs != nil {
				ts.Summary = docs.TypeSummary(ts.FullName)
			}
			return ts
		}),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := s.gallery.Resolve(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version"),
		chi.URLParam(r, "framework"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tf := a.Framework()
	writeJSON(w, http.StatusOK, resolveResponse{
		Name:      name,
		Package:   tf.Package().ID,
		Version:   tf.Package().Version,
		Framework: tf.Moniker,
		File:      a.Path,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := gallery.GraphOptions{Framework: q.Get("framework")}
	if d := q.Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "depth must be a non-negative integer"))
			return
		}
		opts.MaxDepth = n
	}
	if err := errors.ValidateMoniker(opts.Framework); opts.Framework != "" && err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.gallery.Graph(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := strings.ToLower(q.Get("format"))
	if format == "" || format == "json" {
		writeJSON(w, http.StatusOK, graph.FromDAG(d))
		return
	}
	f, err := nodelink.ParseFormat(format)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "unsupported graph format %q", format))
		return
	}
	out, err := nodelink.Render(r.Context(), nodelink.ToDOT(d, nodelink.Options{Detailed: true}), f)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "render graph"))
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// =============================================================================
// Helpers
// =============================================================================

func summarize(tf *nuget.TargetFramework) frameworkSummary {
	toSummary := func(a *nuget.Assembly, _ int) assemblySummary {
		return assemblySummary{File: a.FileName, Path: a.Path, Size: a.Size}
	}
	deps := tf.Dependencies
	if deps == nil {
		deps = []nuget.Dependency{}
	}
	return frameworkSummary{
		Moniker:         tf.Moniker,
		SizeInBytes:     tf.SizeInBytes(),
		Dependencies:    deps,
		Assemblies:      lo.Map(tf.Assemblies, toSummary),
		BuildAssemblies: lo.Map(tf.BuildAssemblies, toSummary),
		Docs:            slices.Sorted(maps.Keys(tf.XMLDocs)),
	}
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(err error) int {
	switch code := errors.GetCode(err); {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case code == errors.ErrCodeFetch || code == errors.ErrCodeNetwork:
		return http.StatusBadGateway
	case code == errors.ErrCodeParse:
		return http.StatusUnprocessableEntity
	case code == errors.ErrCodeInvalidInput || code == errors.ErrCodeInvalidPackage || code == errors.ErrCodeInvalidVersion:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil {
		s.logger.Debug("request cancelled", "path", r.URL.Path, "error", ctxErr)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{Code: string(errors.ErrCodeInternal), Message: "request cancelled"}})
		return
	}

	status := statusFor(err)
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: errors.UserMessage(err)}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
