package stats

import (
	"context"
	"net/http"

	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/transport"
)

type ServiceAPI interface {
	Dashboard(ctx context.Context, actor *coreuser.Principal) (*Dashboard, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	d, err := h.Service.Dashboard(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, d)
}
