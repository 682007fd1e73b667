package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trunov/imageconv/internal/archive"
	"github.com/trunov/imageconv/internal/config"
	"github.com/trunov/imageconv/internal/entities"
	use_case "github.com/trunov/imageconv/internal/use-case"
)

type UseCase interface {
	Convert(ctx context.Context, req entities.ConversionRequest) (entities.ConversionResult, error)
	ConvertBatch(ctx context.Context, files []use_case.BatchFile, tmpl entities.ConversionRequest) ([]use_case.BatchItem, error)
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: newValidator(),
	}
}

func (h *Handler) ConvertImage(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	file, fh, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSONError(w, `missing image file: form field key should be "image"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	req, ok := h.buildRequest(w, r)
	if !ok {
		return
	}

	req.Source, err = io.ReadAll(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.useCase.Convert(r.Context(), req)
	if err != nil {
		log.Printf("[handler] convert %s to %s: %v", fh.Filename, req.Format, err)
		sentry.CaptureException(err)
		writeJSONError(w, conversionFailed, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", res.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", archive.OutputName(fh.Filename, res.Format.Extension())))
	w.Header().Set("X-Quality", strconv.Itoa(res.Quality))
	w.Header().Set("X-Attempts", strconv.Itoa(res.Attempts))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (h *Handler) ConvertBatch(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeJSONError(w, `missing image files: form field key should be "images"`, http.StatusBadRequest)
		return
	}
	if len(headers) > h.cfg.Upload.MaxBatchFiles {
		writeJSONError(w, fmt.Sprintf("too many files: at most %d per batch", h.cfg.Upload.MaxBatchFiles), http.StatusBadRequest)
		return
	}

	tmpl, ok := h.buildRequest(w, r)
	if !ok {
		return
	}

	files := make([]use_case.BatchFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh)
		if err != nil {
			writeJSONError(w, fmt.Sprintf("read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		files = append(files, use_case.BatchFile{Name: fh.Filename, Data: data})
	}

	batchID := uuid.New().String()
	w.Header().Set("X-Batch-ID", batchID)
	log.Printf("[handler] batch %s: %d files to %s", batchID, len(files), tmpl.Format)

	items, err := h.useCase.ConvertBatch(r.Context(), files, tmpl)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, failed, err := use_case.Archive(items)
	if err != nil {
		log.Printf("[handler] batch %s: %v", batchID, err)
		sentry.CaptureException(err)
		writeJSONError(w, conversionFailed, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="converted.zip"`)
	w.Header().Set("X-Failed-Count", strconv.Itoa(failed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return false
	}
	return true
}

// buildRequest validates the scalar fields and turns them into a request
// template without a source.
func (h *Handler) buildRequest(w http.ResponseWriter, r *http.Request) (entities.ConversionRequest, bool) {
	params := ConvertParams{
		Format:   strings.TrimSpace(r.FormValue("format")),
		TargetKB: parsePositiveFloat(r.FormValue("targetKB")),
		Percent:  parseNonZeroInt(r.FormValue("percent")),
		Width:    parseIntDefault(r.FormValue("width"), 0),
		Height:   parseIntDefault(r.FormValue("height"), 0),
	}

	if err := h.validator.Struct(params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return entities.ConversionRequest{}, false
	}

	format, _ := entities.ParseFormat(params.Format)
	req := entities.ConversionRequest{
		Format:         format,
		TargetSizeKB:   params.TargetKB,
		QualityPercent: params.Percent,
	}
	if params.Width > 0 && params.Height > 0 {
		req.Resize = &entities.Resize{Width: params.Width, Height: params.Height}
	}
	return req, true
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
