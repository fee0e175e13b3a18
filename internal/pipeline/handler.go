// AngelaMos | 2026
// handler.go

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/middleware"
)

const multipartMemory = 32 << 20

type Handler struct {
	service   *Service
	access    AccessChecker
	validator *validator.Validate
	maxBody   int64
}

func NewHandler(service *Service, access AccessChecker, maxBody int64) *Handler {
	return &Handler{
		service:   service,
		access:    access,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		maxBody:   maxBody,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/analyzer", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/access", h.GetAccess)
		r.Post("/analyze", h.Analyze)
		r.Get("/history", h.GetHistory)

		r.Post("/documents/{documentID}/edit-rules", h.EditRules)
		r.Delete("/documents/{documentID}", h.DeleteDocument)
		r.Get("/documents/{documentID}/download", h.DownloadDocument)

		r.Get("/rules", h.ListRules)
		r.Post("/rules", h.CreateRule)
	})
}

func (h *Handler) GetAccess(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	decision, err := h.access.Check(r.Context(), userID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, decision)
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.JSONError(w, core.NewAppError(
				core.ErrInvalidInput,
				"PAYLOAD_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				http.StatusRequestEntityTooLarge,
			))
			return
		}
		core.BadRequest(w, msgFilesAndRulesRequired)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup
	}()

	uploads, err := readUploads(r.MultipartForm.File["file"])
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	ruleIDs := strings.Split(r.FormValue("ruleIds"), ",")

	result, err := h.service.AnalyzeDocuments(r.Context(), userID, uploads, ruleIDs)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	if result.Failed != nil {
		core.OKWithMessage(w, "Some documents could not be analyzed", result)
		return
	}

	core.OKWithMessage(w, "Documents stored and analyzed successfully", result)
}

func (h *Handler) EditRules(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	documentID := chi.URLParam(r, "documentID")

	var req EditRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if len(req.Rules) == 0 {
		core.BadRequest(w, msgRulesRequired)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	editor := Editor{UserID: userID, Admin: middleware.IsAdmin(r.Context())}

	result, err := h.service.ReanalyzeWithEdits(r.Context(), editor, documentID, req.Rules)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OKWithMessage(w, "Rules updated", result)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	history, err := h.service.History(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, history)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	documentID := chi.URLParam(r, "documentID")

	if err := h.service.DeleteDocument(r.Context(), userID, documentID); err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	documentID := chi.URLParam(r, "documentID")

	dl, err := h.service.Download(r.Context(), userID, documentID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", dl.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.WriteHeader(http.StatusOK)

	//nolint:errcheck // best-effort response write
	_, _ = w.Write(dl.Content)
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	created, err := h.service.CreateCustomRule(r.Context(), userID, req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, ToRuleResponse(created))
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	catalog, err := h.service.ListRules(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, catalog)
}

func readUploads(headers []*multipart.FileHeader) ([]Upload, error) {
	uploads := make([]Upload, 0, len(headers))

	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		uploads = append(uploads, Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	return io.ReadAll(f)
}
