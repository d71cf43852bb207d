package pricing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/m4-gestao/m4-pdv/internal/platform/httpx"
	"github.com/m4-gestao/m4-pdv/internal/shared"
)

// Handler exposes the pricing API under /produtos.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the pricing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers the pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/api/precificar", h.Quote)
	r.Get("/api/{id}/precificacao", h.ShowPricing)
	r.Put("/api/{id}/precificacao", h.UpdatePricing)
	r.Get("/api/{id}/historico", h.History)
}

type quoteResponse struct {
	Breakdown Breakdown         `json:"resultado"`
	Display   map[string]string `json:"display"`
}

func displayFields(b Breakdown) map[string]string {
	return map[string]string{
		"base":          shared.FormatBRL(b.DiscountedBase),
		"valor_ipi":     shared.FormatBRL(b.IPIAmount),
		"valor_difal":   shared.FormatBRL(b.DIFALAmount),
		"custo_total":   shared.FormatBRL(b.CostTotal),
		"preco_final":   shared.FormatBRL(b.FinalPrice),
		"valor_imposto": shared.FormatBRL(b.TaxAmount),
		"lucro_liquido": shared.FormatBRL(b.NetProfit),
	}
}

// Quote computes a breakdown from the submitted snapshot without
// persisting anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in PriceInputs
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "corpo da requisicao invalido")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	b := h.service.Quote(in).Rounded()
	httpx.JSON(w, http.StatusOK, quoteResponse{Breakdown: b, Display: displayFields(b)})
}

// ShowPricing returns the stored pricing profile and its breakdown.
func (h *Handler) ShowPricing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id invalido")
		return
	}

	p, b, err := h.service.GetProductPricing(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "produto nao encontrado")
			return
		}
		h.logger.Error("get product pricing", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"precificacao": p,
		"resultado":    b.Rounded(),
	})
}

// UpdatePricing persists a new pricing profile for the product.
func (h *Handler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id invalido")
		return
	}

	var in PriceInputs
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "corpo da requisicao invalido")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	operator := shared.OperatorFromContext(r.Context())
	b, err := h.service.UpdateProductPricing(r.Context(), id, in, operator.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "produto nao encontrado")
			return
		}
		h.logger.Error("update product pricing", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, quoteResponse{Breakdown: b, Display: displayFields(b)})
}

// History lists recent price changes for the product.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id invalido")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list price history", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}
