package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
)

type registerReq struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	StoreName string `json:"storeName"`
	Location  string `json:"location"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	Token string           `json:"token"`
	User  *bookstore.User  `json:"user"`
	Store *bookstore.Store `json:"store,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	acc, err := h.Svc.Register(r.Context(), commerce.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		StoreName:     req.StoreName,
		StoreLocation: req.Location,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	tok, err := h.Tokens.Issue(acc.User)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResp{Token: tok, User: acc.User, Store: acc.Store})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	tok, err := h.Tokens.Issue(u)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, authResp{Token: tok, User: u})
}
