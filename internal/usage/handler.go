// AngelaMos | 2026
// handler.go

package usage

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/middleware"
)

type Handler struct {
	accountant *Accountant
}

func NewHandler(accountant *Accountant) *Handler {
	return &Handler{accountant: accountant}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/usage", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/overview", h.GetOverview)
		r.Get("/daily", h.GetDailyUsage)
	})
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		core.BadRequest(w, "period must be one of [day month]")
		return
	}

	overview, err := h.accountant.Overview(r.Context(), userID, period)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, overview)
}

func (h *Handler) GetDailyUsage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	now := time.Now().UTC()

	year := parseIntQuery(r, "year", now.Year())
	month := parseIntQuery(r, "month", int(now.Month()))

	report, err := h.accountant.DailyUsage(r.Context(), userID, year, month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "year and month must form a valid calendar month")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, report)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
