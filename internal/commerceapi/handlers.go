package commerceapi

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

type cartMutationRequest struct {
	ProductID string              `json:"productId" validate:"required,productid"`
	Quantity  int                 `json:"quantity" validate:"min=1"`
	Color     *types.ColorVariant `json:"color"`
}

type cartRemovalRequest struct {
	ProductID string              `json:"productId" validate:"required,productid"`
	Color     *types.ColorVariant `json:"color"`
}

type wishlistRequest struct {
	ProductID string `json:"productId" validate:"required,productid"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	writeCart(w, s.accounts.cart(accountFrom(r.Context())))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartMutationRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	items, err := s.accounts.addToCart(accountFrom(r.Context()), strings.TrimSpace(req.ProductID), req.Quantity, req.Color)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeCart(w, items)
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	var req cartMutationRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	items, err := s.accounts.setQuantity(accountFrom(r.Context()), strings.TrimSpace(req.ProductID), req.Quantity, req.Color)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeCart(w, items)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartRemovalRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	if err := s.accounts.removeFromCart(accountFrom(r.Context()), strings.TrimSpace(req.ProductID), req.Color.Clone()); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item removed from cart")
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.accounts.clearCart(accountFrom(r.Context()))
	writeMessage(w, http.StatusOK, "Cart cleared")
}

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wishlistEnvelope{
		Success:  true,
		Wishlist: s.accounts.wishlist(accountFrom(r.Context())),
	})
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	if err := s.accounts.addToWishlist(accountFrom(r.Context()), strings.TrimSpace(req.ProductID)); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Added to wishlist")
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	s.accounts.removeFromWishlist(accountFrom(r.Context()), strings.TrimSpace(req.ProductID))
	writeMessage(w, http.StatusOK, "Removed from wishlist")
}
