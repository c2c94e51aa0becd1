package division

import (
	"context"
	"net/http"

	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/transport"
)

type ServiceAPI interface {
	CreateDivision(ctx context.Context, actor *coreuser.Principal, dto CreateDivisionDTO) (*Division, error)
	ListDivisions(ctx context.Context) ([]*Division, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListDivisions(w http.ResponseWriter, r *http.Request) {
	divisions, err := h.Service.ListDivisions(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, DivisionsResponse{Divisions: divisions})
}

func (h *Handler) CreateDivision(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto CreateDivisionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	d, err := h.Service.CreateDivision(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, d)
}
