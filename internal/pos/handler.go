package pos

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

// Handler exposes the vendas API consumed by the PDV screen.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	validate      *validator.Validate
	searchLimiter func(http.Handler) http.Handler
}

// NewHandler constructs the vendas handler. searchLimiter, when set,
// rate-limits the autocomplete endpoints; the counter UI debounces but
// a stuck key still produces a burst.
func NewHandler(logger *slog.Logger, service *Service, searchLimiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		validate:      validator.New(),
		searchLimiter: searchLimiter,
	}
}

// MountRoutes registers the vendas routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.searchLimiter != nil {
			r.Use(h.searchLimiter)
		}
		r.Get("/api/clientes_autocomplete", h.SearchClients)
		r.Get("/api/produtos_search", h.SearchProducts)
		r.Get("/api/cliente/{id}/armas", h.ListClientWeapons)
	})
	r.Post("/api/cart/add_item", h.AddItem)
	r.Post("/api/cart/finalize_sale", h.FinalizeSale)
	r.Get("/api/vendas", h.ListSales)
	r.Get("/api/vendas/{id}", h.ShowSale)
	r.Post("/api/vendas/{id}/cancelar", h.CancelSale)
}

// SearchClients handles GET /api/clientes_autocomplete?q=.
func (h *Handler) SearchClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	clients, err := h.service.SearchClients(r.Context(), query)
	if err != nil {
		h.logger.Error("search clients", slog.String("q", query), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

// SearchProducts handles GET /api/produtos_search?q=.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	products, err := h.service.SearchProducts(r.Context(), query)
	if err != nil {
		h.logger.Error("search products", slog.String("q", query), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

// ListClientWeapons handles GET /api/cliente/{id}/armas?calibre=.
func (h *Handler) ListClientWeapons(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id de cliente invalido")
		return
	}
	caliber := r.URL.Query().Get("calibre")

	weapons, err := h.service.ListClientWeapons(r.Context(), clientID, caliber)
	if err != nil {
		h.logger.Error("list client weapons", slog.Int64("client_id", clientID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, weapons)
}

// AddItem handles POST /api/cart/add_item: authoritative validation of
// a staged cart item. The cart itself lives in the counter session;
// only a validated item is allowed into it.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "corpo da requisicao invalido")
		return
	}
	if req.ClientID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "cliente nao selecionado; a venda requer um cliente valido")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "dados do produto (id, quantidade, preco) sao invalidos")
		return
	}

	item, err := h.service.ValidateItem(r.Context(), req)
	if err != nil {
		h.respondItemError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    item,
	})
}

func (h *Handler) respondItemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNoClient),
		errors.Is(err, ErrInvalidItem),
		errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrSerialRequired),
		errors.Is(err, shared.ErrWeaponLinkRequired),
		errors.Is(err, ErrWeaponNotOwned),
		errors.Is(err, ErrWeaponCaliberMismatch):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("validate cart item", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "erro interno do servidor ao processar o item")
	}
}

// FinalizeSale handles POST /api/cart/finalize_sale: the one atomic
// write of the whole cart. An Idempotency-Key header deduplicates
// client retries after transport failures.
func (h *Handler) FinalizeSale(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "corpo da requisicao invalido")
		return
	}
	if len(req.Items) == 0 {
		httpx.Error(w, http.StatusBadRequest, "o carrinho esta vazio")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "dados da venda invalidos")
		return
	}

	sale, err := h.service.Finalize(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondFinalizeError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Venda finalizada com sucesso!",
		"sale_id": sale.ID,
		"codigo":  sale.Code,
	})
}

func (h *Handler) respondFinalizeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNoClient),
		errors.Is(err, shared.ErrEmptyCart),
		errors.Is(err, shared.ErrSerialRequired),
		errors.Is(err, shared.ErrWeaponLinkRequired),
		errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrInsufficientReceived):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSerialUnavailable):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("finalize sale", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "erro interno ao finalizar a venda; transacao cancelada")
	}
}

// ListSales handles GET /api/vendas?page=&per_page=.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	sales, pagination, err := h.service.ListSales(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"vendas":     sales,
		"pagination": pagination,
	})
}

// ShowSale handles GET /api/vendas/{id}.
func (h *Handler) ShowSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id invalido")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "venda nao encontrada")
			return
		}
		h.logger.Error("get sale", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// CancelSale handles POST /api/vendas/{id}/cancelar. Cancellation
// releases reserved stock units.
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "id invalido")
		return
	}

	sale, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrSaleAlreadyCancelled):
			httpx.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotFound):
			httpx.Error(w, http.StatusNotFound, "venda nao encontrada")
		default:
			h.logger.Error("cancel sale", slog.Int64("sale_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"venda":   sale,
	})
}
