package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/hyperjump/clusterizer/internal/models"
	"github.com/hyperjump/clusterizer/internal/pipeline"
	"github.com/hyperjump/clusterizer/internal/storage"
	"github.com/hyperjump/clusterizer/internal/tabular"
	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.config.Server.MaxUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte upload limit", s.config.Server.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", tooBig.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	if !tabular.IsSupported(header.Filename) {
		s.respondError(w, http.StatusBadRequest, "file must be .csv or .xlsx")
		return
	}
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeFeatures, _ := strconv.ParseBool(r.URL.Query().Get("features"))

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	raw, err := s.runner.Reader().ReadBytes(content, filepath.Ext(header.Filename))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("cluster request",
		zap.String("file", header.Filename),
		zap.Int("rows", raw.Len()),
		zap.String("format", string(format)))

	pred, err := s.runner.ClusterTable(r.Context(), raw, header.Filename)
	if err != nil {
		if pipeline.IsInputError(err) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("clustering failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, err := tabular.NewWriter(tabular.WriteOptions{IncludeFeatures: includeFeatures}).Bytes(format, pred)
	if err != nil {
		s.logger.Error("render failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	if format != tabular.FormatJSON {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	}
	h.Set("X-Run-ID", pred.RunID)
	h.Set("X-Rows-Dropped", strconv.Itoa(pred.Summary.RowsIn-pred.Summary.RowsOut))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleClusterInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.model.Info(r.Context())
	if err != nil {
		s.logger.Error("model info failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not enabled")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.storage.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.storage.GetRun(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "run not found")
		return
	}
	resp := map[string]interface{}{"run": run}
	if include, _ := strconv.ParseBool(r.URL.Query().Get("assignments")); include {
		assignments, err := s.storage.GetRunAssignments(r.Context(), id)
		if err != nil {
			s.respondStorageError(w, err, "run not found")
			return
		}
		resp["assignments"] = assignments
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "run storage not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	a, err := s.storage.GetClientAssignment(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "client not found")
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleSearchClients(w http.ResponseWriter, r *http.Request) {
	if s.clients == nil {
		s.respondError(w, http.StatusNotImplemented, "client search not enabled")
		return
	}
	q := &models.ClientQuery{Query: r.URL.Query().Get("q")}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if c := r.URL.Query().Get("cluster"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cluster must be an integer")
			return
		}
		q.Cluster = &n
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("client search", zap.String("query", q.Query), zap.Int("limit", q.Limit))
	hits, err := s.clients.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("client search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q.Query, "results": hits, "total": len(hits)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "clusterizer",
		"endpoints": []string{
			"POST /api/v1/cluster",
			"GET /api/v1/cluster/info",
			"GET /api/v1/runs",
			"GET /api/v1/runs/{id}",
			"GET /api/v1/clients/{id}",
			"GET /api/v1/clients/search",
			"GET /api/v1/status",
			"GET /health",
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{}

	if info, err := s.model.Info(ctx); err != nil {
		resp["model"] = map[string]string{"status": "error", "error": err.Error()}
	} else {
		resp["model"] = info
	}

	if s.storage != nil {
		runCount, err := s.storage.CountRuns(ctx)
		if err != nil {
			s.logger.Error("status: count runs failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		assignmentCount, err := s.storage.CountAssignments(ctx)
		if err != nil {
			s.logger.Error("status: count assignments failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["runs"] = runCount
		resp["assignments"] = assignmentCount
	}
	if s.clients != nil {
		if n, err := s.clients.DocCount(); err == nil {
			resp["indexed_clients"] = n
		}
	}

	configInfo := map[string]interface{}{
		"artifact_source":  s.config.Artifacts.Source,
		"database_path":    s.config.Storage.DatabasePath,
		"bleve_index_path": s.config.Storage.BleveIndexPath,
		"max_upload_bytes": s.config.Server.MaxUploadBytes,
	}
	diskBytes, err := storage.DiskUsageBytes(append(storage.DatabaseFiles(s.config.Storage.DatabasePath), s.config.Storage.BleveIndexPath)...)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo

	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if s.retention != nil {
		resp["retention"] = s.retention.Status()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondStorageError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("storage lookup failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
