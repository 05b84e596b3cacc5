package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"slidecast/internal/deps"
	"slidecast/internal/logging"
	"slidecast/internal/pipeline"
	"slidecast/internal/registry"
	"slidecast/internal/services"
)

type convertResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	JobURL string `json:"job_url"`
}

type jobListResponse struct {
	Jobs []*registry.Job `json:"jobs"`
}

type toolHealth struct {
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status string                `json:"status"`
	Tools  map[string]toolHealth `json:"tools"`
	Jobs   jobCounts             `json:"jobs"`
}

type jobCounts struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

var allowedExtensions = map[string]struct{}{
	".ppt":  {},
	".pptx": {},
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB limit", s.cfg.Server.MaxUploadMB))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q, expected .ppt or .pptx", ext))
		return
	}

	req, err := parseConvertOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uploadPath, err := s.stageUpload(file, ext)
	if err != nil {
		s.logger.Error("upload staging failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	job := s.registry.Create(filename)
	if err := s.pipeline.Submit(job.ID, uploadPath, req); err != nil {
		os.Remove(uploadPath)
		if removeErr := s.registry.Remove(job.ID); removeErr != nil {
			s.logger.Warn("orphaned job cleanup failed", logging.Error(removeErr))
		}
		s.writeError(w, http.StatusServiceUnavailable, "conversion pipeline unavailable")
		return
	}

	s.logger.Info("conversion accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("filename", filename))
	s.writeJSON(w, http.StatusAccepted, convertResponse{
		JobID:  job.ID,
		Status: string(job.Status),
		JobURL: fmt.Sprintf("%s/jobs/%s", strings.TrimRight(s.cfg.Server.BaseURL, "/"), job.ID),
	})
}

// stageUpload copies the multipart part to a unique file under the work root
// so the pipeline can take ownership of it.
func (s *Server) stageUpload(file io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.Paths.WorkRoot, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staged upload: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write staged upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close staged upload: %w", err)
	}
	return tmp.Name(), nil
}

func parseConvertOptions(r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request
	if value := strings.TrimSpace(r.FormValue("dpi")); value != "" {
		dpi, err := strconv.Atoi(value)
		if err != nil || dpi <= 0 {
			return req, fmt.Errorf("invalid dpi %q", value)
		}
		req.DPI = dpi
	}
	if value := strings.ToLower(strings.TrimSpace(r.FormValue("format"))); value != "" {
		switch value {
		case "png", "jpg", "jpeg":
			req.Format = value
		default:
			return req, fmt.Errorf("unsupported format %q, expected png or jpg", value)
		}
	}
	return req, nil
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobs := s.registry.List()
	if s.history != nil {
		seen := make(map[string]struct{}, len(jobs))
		for _, job := range jobs {
			seen[job.ID] = struct{}{}
		}
		recorded, err := s.history.List(r.Context(), 200)
		if err != nil {
			s.logger.Warn("history list failed", logging.Error(err))
		}
		for _, job := range recorded {
			if _, ok := seen[job.ID]; !ok {
				jobs = append(jobs, job)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, jobListResponse{Jobs: jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := s.registry.Get(id)
		if err != nil && s.history != nil && errors.Is(err, services.ErrNotFound) {
			job, err = s.history.Get(r.Context(), id)
		}
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "job not found")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.pipeline.Delete(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, services.ErrNotFound):
				s.writeError(w, http.StatusNotFound, "job not found")
			case errors.Is(err, services.ErrValidation):
				s.writeError(w, http.StatusConflict, services.Detail(err))
			default:
				s.writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	statuses := deps.CheckBinaries(deps.Requirements(s.cfg))
	tools := make(map[string]toolHealth, len(statuses))
	overall := "ok"
	for _, status := range statuses {
		tools[status.Name] = toolHealth{Available: status.Available, Detail: status.Detail}
		if !status.Available && !status.Optional {
			overall = "degraded"
		}
	}

	all := s.registry.List()
	counts := jobCounts{Total: len(all)}
	for _, job := range all {
		if !job.Status.Terminal() {
			counts.Active++
		}
	}

	code := http.StatusOK
	if overall != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{Status: overall, Tools: tools, Jobs: counts})
}
