// Package commerceapi is an in-memory implementation of the storefront cart
// and wishlist API. Carts and wishlists are kept per bearer token subject.
package commerceapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/go-chi/chi/v5"
)

// Params groups dependencies for the API server.
type Params struct {
	Logger  *logger.Logger
	JWT     config.JWTConfig
	Catalog Catalog
	Now     func() time.Time
}

// Server serves the cart and wishlist routes under /api.
type Server struct {
	logg     *logger.Logger
	jwt      config.JWTConfig
	now      func() time.Time
	accounts *accounts
	router   chi.Router

	faultMu sync.Mutex
	faults  map[string][]Fault
}

func New(params Params) (*Server, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Catalog == nil {
		params.Catalog = DefaultCatalog()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	s := &Server{
		logg:     params.Logger,
		jwt:      params.JWT,
		now:      params.Now,
		accounts: newAccounts(params.Catalog),
		faults:   make(map[string][]Fault),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		recoverer(s.logg),
		requestID(s.logg),
		logging(s.logg),
	)
	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.faultInjector, s.requireAccount)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/", s.addToCart)
			r.Put("/", s.updateCart)
			r.Delete("/", s.clearCart)
			r.Delete("/item", s.removeCartItem)
		})
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", s.getWishlist)
			r.Post("/", s.addToWishlist)
			r.Delete("/", s.removeFromWishlist)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Cart returns the stored cart of account.
func (s *Server) Cart(account string) types.CartItems {
	lines := s.accounts.cart(account)
	out := make(types.CartItems, 0, len(lines))
	for _, item := range lines {
		out = append(out, item.CartItem)
	}
	return out
}

// Wishlist returns the stored wishlist of account.
func (s *Server) Wishlist(account string) types.WishlistItems {
	return s.accounts.wishlist(account)
}

// SeedCart adds lines to account's cart as if they had been posted.
func (s *Server) SeedCart(account string, items ...types.CartItem) error {
	for _, item := range items {
		if _, err := s.accounts.addToCart(account, item.ProductID, item.Quantity, item.Color); err != nil {
			return err
		}
	}
	return nil
}

// SeedWishlist adds products to account's wishlist, ignoring duplicates.
func (s *Server) SeedWishlist(account string, productIDs ...string) error {
	for _, productID := range productIDs {
		if err := s.accounts.addToWishlist(account, productID); err != nil && !pkgerrors.Is(err, pkgerrors.CodeAlreadyExists) {
			return err
		}
	}
	return nil
}
