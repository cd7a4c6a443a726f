package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/analysis"
	"github.com/sells-group/microfinance-cli/internal/metrics"
	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/sheet"
	"github.com/sells-group/microfinance-cli/internal/store"
	"github.com/sells-group/microfinance-cli/internal/upload"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

type uploadResponse struct {
	FileID   string                     `json:"file_id"`
	Filename string                     `json:"filename"`
	Rows     int                        `json:"rows"`
	Columns  int                        `json:"columns"`
	Analyses map[string]analysis.Status `json:"analyses"`
	Errors   map[string]string          `json:"errors,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+formOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
			return
		}
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		badRequest(w, "no file part")
		return
	}
	defer file.Close() //nolint:errcheck

	path, err := upload.Save(s.opts.UploadDir, header.Filename, file, s.opts.MaxUploadBytes)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, r, err)
		return
	}

	table, err := sheet.Load(path)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		os.Remove(path) //nolint:errcheck
		writeError(w, r, err)
		return
	}

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		uploadedBy = s.opts.AdminName
	}
	rec := &model.UploadedFile{
		Filename:   header.Filename,
		Path:       path,
		UploadedBy: uploadedBy,
	}
	if err := s.store.CreateFile(ctx, rec); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		writeError(w, r, err)
		return
	}

	rep := analysis.Run(ctx, table, func(typ string, o analysis.Outcome) {
		metrics.ObserveAnalysis(typ, string(o.Status), o.Duration)
	})

	results := rep.Results()
	for typ, data := range results {
		if err := s.store.SaveResult(ctx, rec.ID, typ, data); err != nil {
			metrics.UploadsTotal.WithLabelValues("failed").Inc()
			writeError(w, r, eris.Wrapf(err, "api: save %s result", typ))
			return
		}
	}
	if err := s.store.MarkAnalyzed(ctx, rec.ID); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		writeError(w, r, err)
		return
	}
	metrics.UploadsTotal.WithLabelValues("ok").Inc()

	zap.L().Info("spreadsheet analyzed",
		zap.String("file_id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.Int("rows", table.Rows()),
		zap.Int("results", len(results)),
	)

	s.notifyAsync(ctx, s.opts.AdminPhone,
		notify.AnalysisComplete(s.opts.AdminName, rec.Filename, rep.Summary),
		model.MessageNotification)

	resp := uploadResponse{
		FileID:   rec.ID,
		Filename: rec.Filename,
		Rows:     table.Rows(),
		Columns:  len(table.Names()),
		Analyses: make(map[string]analysis.Status, len(rep.Outcomes)),
	}
	for typ, o := range rep.Outcomes {
		resp.Analyses[typ] = o.Status
		if o.Error != "" {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[typ] = o.Error
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}
	files, err := s.store.ListFiles(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

type fileResultsResponse struct {
	File    *model.UploadedFile        `json:"file"`
	Results map[string]json.RawMessage `json:"results"`
}

func (s *Server) handleFileResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	f, err := s.store.GetFile(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := s.store.ListResults(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := fileResultsResponse{File: f, Results: make(map[string]json.RawMessage, len(results))}
	for _, res := range results {
		resp.Results[res.Type] = res.Data
	}
	writeJSON(w, http.StatusOK, resp)
}

func listFilter(w http.ResponseWriter, r *http.Request) (store.ListFilter, bool) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be a non-negative integer")
		return store.ListFilter{}, false
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		badRequest(w, "offset must be a non-negative integer")
		return store.ListFilter{}, false
	}
	return store.ListFilter{Limit: limit, Offset: offset}, true
}
