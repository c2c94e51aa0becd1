package user

import (
	"context"
	"io"
	"net/http"

	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, actor *coreuser.Principal, dto CreateUserDTO) (*User, error)
	ListUsers(ctx context.Context, actor *coreuser.Principal, filter ListFilter) ([]*User, error)
	GetUser(ctx context.Context, actor *coreuser.Principal, id string) (*User, error)
	UpdateUser(ctx context.Context, actor *coreuser.Principal, id string, dto UpdateUserDTO) (*User, error)
	UploadAvatar(ctx context.Context, actor *coreuser.Principal, id string, r io.Reader) (*User, error)
	DeleteUser(ctx context.Context, actor *coreuser.Principal, id string) error
	ReconcileAs(ctx context.Context, actor *coreuser.Principal, limit int) (ReconcileResult, error)
}

type UsersResponse struct {
	Users []*User `json:"users"`
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	// MaxAvatarBytes caps the multipart body read for avatar uploads.
	MaxAvatarBytes int64
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, maxAvatarBytes int64) *Handler {
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = internal.DefaultAvatarMaxSize
	}
	return &Handler{
		BaseHandler:    baseHandler,
		Service:        svc,
		MaxAvatarBytes: maxAvatarBytes,
	}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	limit, err := h.QueryInt(r, "limit", 0)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter, appErr := ParseListFilter(q.Get("division"), q.Get("role"), q.Get("status"), limit)
	if appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	users, err := h.Service.ListUsers(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, UsersResponse{Users: users})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.CreateUser(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	u, err := h.Service.GetUser(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.UpdateUser(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// UploadAvatar accepts multipart/form-data with the image in field "avatar".
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxAvatarBytes+64*1024)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		h.HandleServiceError(w, r, internal.NewValidationFieldError("avatar", "An image file is required (max 5MB)", internal.ErrCodeValidationFailed))
		return
	}
	defer file.Close()

	u, err := h.Service.UploadAvatar(r.Context(), actor, chi.URLParam(r, "id"), file)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteUser(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReconcileProvisioning(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Principal(w, r)
	if !ok {
		return
	}

	limit, err := h.QueryInt(r, "limit", 100)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	result, err := h.Service.ReconcileAs(r.Context(), actor, limit)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
