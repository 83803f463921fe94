// Package http is the service's operational surface: a JSON API over chi
// exposing every marketplace, fee, reward, settlement, and admin operation.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fracta-fi/fracta-backend/internal/domain"
	"github.com/fracta-fi/fracta-backend/internal/usecase/assets"
	"github.com/fracta-fi/fracta-backend/internal/usecase/fees"
	"github.com/fracta-fi/fracta-backend/internal/usecase/marketplace"
	"github.com/fracta-fi/fracta-backend/internal/usecase/reward"
	"github.com/fracta-fi/fracta-backend/internal/usecase/settlement"
)

// Server wires the usecase services into HTTP handlers.
type Server struct {
	Assets      *assets.Service
	Fees        *fees.Service
	Marketplace *marketplace.Service
	Rewards     *reward.Service
	Settlement  *settlement.Service
	Settings    domain.TreasurySettings
	Access      domain.AccessControl
}

// NewServer creates an HTTP server over the usecase services.
func NewServer(
	assetService *assets.Service,
	feeService *fees.Service,
	marketplaceService *marketplace.Service,
	rewardService *reward.Service,
	settlementService *settlement.Service,
	settings domain.TreasurySettings,
	access domain.AccessControl,
) *Server {
	return &Server{
		Assets:      assetService,
		Fees:        feeService,
		Marketplace: marketplaceService,
		Rewards:     rewardService,
		Settlement:  settlementService,
		Settings:    settings,
		Access:      access,
	}
}

// Router builds the chi router with auth applied to every route.
func (s *Server) Router(apiToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Auth(apiToken))

	r.Route("/assets", func(r chi.Router) {
		r.Post("/", s.handleCreateAsset)
		r.Get("/{mainID}/{subID}", s.handleAssetInfo)
		r.Get("/{mainID}/{subID}/rewards", s.handleRewards)
	})

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", s.handleList)
		r.Post("/batch", s.handleBatchList)
		r.Delete("/", s.handleUnlist)
		r.Delete("/batch", s.handleBatchUnlist)
		r.Get("/{mainID}/{subID}/{owner}", s.handleGetListing)
	})

	r.Route("/trades", func(r chi.Router) {
		r.Post("/buy", s.handleBuy)
		r.Post("/buy/batch", s.handleBatchBuy)
		r.Post("/counter-offer", s.handleCounterOffer)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Post("/", s.handleSettle)
		r.Post("/batch", s.handleBatchSettle)
	})

	r.Route("/fees", func(r chi.Router) {
		r.Get("/{mainID}/{subID}", s.handleResolveFees)
		r.Put("/default", s.handleSetDefaultFees)
		r.Put("/{mainID}/{subID}", s.handleSetAssetFees)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Put("/treasury", s.handleSetTreasury)
		r.Put("/fee-sink", s.handleSetFeeSink)
		r.Post("/roles", s.handleGrantRole)
	})

	return r
}

// errorResponse carries a machine-distinguishable rejection code alongside
// the human-readable message.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var errorCodes = map[error]struct {
	status int
	code   string
}{
	domain.ErrZeroAddress:         {http.StatusBadRequest, "ZERO_ADDRESS"},
	domain.ErrZeroAmount:          {http.StatusBadRequest, "ZERO_AMOUNT"},
	domain.ErrInvalidFee:          {http.StatusBadRequest, "INVALID_FEE"},
	domain.ErrNoArrayParity:       {http.StatusBadRequest, "NO_ARRAY_PARITY"},
	domain.ErrBatchTooLarge:       {http.StatusBadRequest, "BATCH_TOO_LARGE"},
	domain.ErrInvalidListing:      {http.StatusBadRequest, "INVALID_LISTING"},
	domain.ErrBelowMinFraction:    {http.StatusBadRequest, "BELOW_MIN_FRACTION"},
	domain.ErrExceedsListed:       {http.StatusBadRequest, "EXCEEDS_LISTED"},
	domain.ErrInsufficientBalance: {http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
	domain.ErrUnsupportedCurrency: {http.StatusBadRequest, "UNSUPPORTED_CURRENCY"},
	domain.ErrListingNotFound:     {http.StatusNotFound, "LISTING_NOT_FOUND"},
	domain.ErrAssetNotFound:       {http.StatusNotFound, "ASSET_NOT_FOUND"},
	domain.ErrDueDateNotPassed:    {http.StatusConflict, "DUE_DATE_NOT_PASSED"},
	domain.ErrDueDatePassed:       {http.StatusConflict, "DUE_DATE_PASSED"},
	domain.ErrOfferExpired:        {http.StatusConflict, "OFFER_EXPIRED"},
	domain.ErrAssetAlreadyCreated: {http.StatusConflict, "ASSET_ALREADY_CREATED"},
	domain.ErrMissingRole:         {http.StatusForbidden, "MISSING_ROLE"},
	domain.ErrInvalidSignature:    {http.StatusForbidden, "INVALID_SIGNATURE"},
	domain.ErrNotOfferor:          {http.StatusForbidden, "NOT_OFFEROR"},
}

func writeError(w http.ResponseWriter, err error) {
	for sentinel, m := range errorCodes {
		if errors.Is(err, sentinel) {
			writeJSON(w, m.status, errorResponse{Code: m.code, Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Error: err.Error()})
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: "UNAUTHENTICATED", Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
