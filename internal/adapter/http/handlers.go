package http

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fracta-fi/fracta-backend/internal/domain"
	"github.com/fracta-fi/fracta-backend/internal/usecase/assets"
	"github.com/fracta-fi/fracta-backend/internal/usecase/offer"
)

// actorHeader carries the acting account for state-changing requests.
const actorHeader = "X-Actor"

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainID             string    `json:"main_id"`
		SubID              string    `json:"sub_id"`
		Price              string    `json:"price"`
		DueDate            time.Time `json:"due_date"`
		RewardAPRBps       int64     `json:"reward_apr_bps"`
		Fractions          string    `json:"fractions"`
		SettlementCurrency string    `json:"settlement_currency"`
		InitialOwner       string    `json:"initial_owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := domain.ParseAssetKey(req.MainID, req.SubID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	price, err := parseAmount(req.Price, "price")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fractions, err := parseAmount(req.Fractions, "fractions")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	initialOwner, err := domain.HexToAddress(req.InitialOwner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	input := assets.CreateInput{
		Key:                key,
		Price:              price,
		DueDate:            req.DueDate,
		RewardAPRBps:       req.RewardAPRBps,
		Fractions:          fractions,
		SettlementCurrency: req.SettlementCurrency,
		InitialOwner:       initialOwner,
	}
	if err := s.Assets.Create(r.Context(), actor, input); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"asset": key.String()})
}

func (s *Server) handleAssetInfo(w http.ResponseWriter, r *http.Request) {
	key, err := parseKeyVars(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	info, err := s.Assets.Info(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"main_id":             key.Main,
		"sub_id":              key.Sub,
		"price":               info.Price.String(),
		"due_date":            info.DueDate,
		"reward_apr_bps":      info.RewardAPR,
		"fractions":           info.Fractions.String(),
		"settlement_currency": info.SettlementCurrency,
		"initial_owner":       info.InitialOwner.Hex(),
	})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	key, err := parseKeyVars(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	available, err := s.Rewards.AvailableReward(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	remaining, err := s.Rewards.RemainingReward(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"available": available.String(),
		"remaining": remaining.String(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainID          string `json:"main_id"`
		SubID           string `json:"sub_id"`
		SalePrice       string `json:"sale_price"`
		ListedFractions string `json:"listed_fractions"`
		MinFraction     string `json:"min_fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, salePrice, listed, minFraction, err := parseListing(req.MainID, req.SubID, req.SalePrice, req.ListedFractions, req.MinFraction)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Marketplace.List(r.Context(), actor, key, salePrice, listed, minFraction); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "listed"})
}

func (s *Server) handleBatchList(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainIDs         []string `json:"main_ids"`
		SubIDs          []string `json:"sub_ids"`
		SalePrices      []string `json:"sale_prices"`
		ListedFractions []string `json:"listed_fractions"`
		MinFractions    []string `json:"min_fractions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	keys, err := zipKeys(req.MainIDs, req.SubIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	salePrices, err := parseAmounts(req.SalePrices, "sale_prices")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	listed, err := parseAmounts(req.ListedFractions, "listed_fractions")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	minFractions, err := parseAmounts(req.MinFractions, "min_fractions")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Marketplace.BatchList(r.Context(), actor, keys, salePrices, listed, minFractions); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "listed"})
}

func (s *Server) handleUnlist(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainID string `json:"main_id"`
		SubID  string `json:"sub_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := domain.ParseAssetKey(req.MainID, req.SubID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Marketplace.Unlist(r.Context(), actor, key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlisted"})
}

func (s *Server) handleBatchUnlist(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainIDs []string `json:"main_ids"`
		SubIDs  []string `json:"sub_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	keys, err := zipKeys(req.MainIDs, req.SubIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Marketplace.BatchUnlist(r.Context(), actor, keys); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlisted"})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	key, err := parseKeyVars(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := domain.HexToAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	listing, err := s.Marketplace.Listing(r.Context(), key, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":            listing.Owner.Hex(),
		"sale_price":       listing.SalePrice.String(),
		"listed_fractions": listing.ListedFractions.String(),
		"min_fraction":     listing.MinFraction.String(),
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainID        string `json:"main_id"`
		SubID         string `json:"sub_id"`
		FractionToBuy string `json:"fraction_to_buy"`
		Owner         string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := domain.ParseAssetKey(req.MainID, req.SubID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fraction, err := parseAmount(req.FractionToBuy, "fraction_to_buy")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := domain.HexToAddress(req.Owner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Marketplace.Buy(r.Context(), actor, key, fraction, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bought"})
}

func (s *Server) handleBatchBuy(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		MainIDs        []string `json:"main_ids"`
		SubIDs         []string `json:"sub_ids"`
		FractionsToBuy []string `json:"fractions_to_buy"`
		Owners         []string `json:"owners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	keys, err := zipKeys(req.MainIDs, req.SubIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	fractions, err := parseAmounts(req.FractionsToBuy, "fractions_to_buy")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owners, err := parseAddresses(req.Owners)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Marketplace.BatchBuy(r.Context(), actor, keys, fractions, owners); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bought"})
}

func (s *Server) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Owner          string `json:"owner"`
		Offeror        string `json:"offeror"`
		OfferPrice     string `json:"offer_price"`
		MainID         string `json:"main_id"`
		SubID          string `json:"sub_id"`
		FractionsToBuy string `json:"fractions_to_buy"`
		Deadline       int64  `json:"deadline"`
		Signature      string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := domain.HexToAddress(req.Owner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	offeror, err := domain.HexToAddress(req.Offeror)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := domain.ParseAssetKey(req.MainID, req.SubID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	offerPrice, err := parseAmount(req.OfferPrice, "offer_price")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fractions, err := parseAmount(req.FractionsToBuy, "fractions_to_buy")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	counterOffer := offer.CounterOffer{
		Owner:      owner,
		Offeror:    offeror,
		OfferPrice: offerPrice,
		Key:        key,
		Fractions:  fractions,
		Deadline:   req.Deadline,
	}
	if err := s.Marketplace.CounterOffer(r.Context(), actor, counterOffer, signature); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bought"})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MainID string `json:"main_id"`
		SubID  string `json:"sub_id"`
		Owner  string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := domain.ParseAssetKey(req.MainID, req.SubID)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := domain.HexToAddress(req.Owner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Settlement.Settle(r.Context(), key, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func (s *Server) handleBatchSettle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MainIDs []string `json:"main_ids"`
		SubIDs  []string `json:"sub_ids"`
		Owners  []string `json:"owners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	keys, err := zipKeys(req.MainIDs, req.SubIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	owners, err := parseAddresses(req.Owners)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Settlement.BatchSettle(r.Context(), keys, owners); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func (s *Server) handleResolveFees(w http.ResponseWriter, r *http.Request) {
	key, err := parseKeyVars(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	initial, buying, err := s.Fees.ResolveFees(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"initial_fee_bps": initial,
		"buying_fee_bps":  buying,
	})
}

func (s *Server) handleSetDefaultFees(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		InitialFeeBps int64 `json:"initial_fee_bps"`
		BuyingFeeBps  int64 `json:"buying_fee_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Fees.SetDefaultFees(r.Context(), actor, req.InitialFeeBps, req.BuyingFeeBps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetAssetFees(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := parseKeyVars(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req struct {
		InitialFeeBps *int64 `json:"initial_fee_bps"`
		BuyingFeeBps  *int64 `json:"buying_fee_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.Fees.SetAssetFees(r.Context(), actor, key, req.InitialFeeBps, req.BuyingFeeBps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	s.handleSetAccount(w, r, s.Settings.SetTreasury)
}

func (s *Server) handleSetFeeSink(w http.ResponseWriter, r *http.Request) {
	s.handleSetAccount(w, r, s.Settings.SetFeeSink)
}

func (s *Server) handleSetAccount(w http.ResponseWriter, r *http.Request, set func(domain.Address) error) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Access.Require(actor, domain.RoleAdmin); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := domain.HexToAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := set(addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	actor, err := parseActor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Access.Require(actor, domain.RoleAdmin); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Address string `json:"address"`
		Role    string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := domain.HexToAddress(req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.Access.Grant(addr, domain.Role(req.Role))
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func parseActor(r *http.Request) (domain.Address, error) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		return domain.Address{}, domain.ErrZeroAddress
	}
	return domain.HexToAddress(raw)
}

func parseKeyVars(r *http.Request) (domain.AssetKey, error) {
	return domain.ParseAssetKey(chi.URLParam(r, "mainID"), chi.URLParam(r, "subID"))
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return v, nil
}

func parseAmounts(raw []string, field string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		v, err := parseAmount(s, field)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseAddresses(raw []string) ([]domain.Address, error) {
	out := make([]domain.Address, len(raw))
	for i, s := range raw {
		a, err := domain.HexToAddress(s)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func parseListing(mainID, subID, salePrice, listedFractions, minFraction string) (domain.AssetKey, decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	key, err := domain.ParseAssetKey(mainID, subID)
	if err != nil {
		return domain.AssetKey{}, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	price, err := parseAmount(salePrice, "sale_price")
	if err != nil {
		return domain.AssetKey{}, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	listed, err := parseAmount(listedFractions, "listed_fractions")
	if err != nil {
		return domain.AssetKey{}, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	minF, err := parseAmount(minFraction, "min_fraction")
	if err != nil {
		return domain.AssetKey{}, decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return key, price, listed, minF, nil
}

func zipKeys(mainIDs, subIDs []string) ([]domain.AssetKey, error) {
	if len(mainIDs) != len(subIDs) {
		return nil, domain.ErrNoArrayParity
	}
	keys := make([]domain.AssetKey, len(mainIDs))
	for i := range mainIDs {
		k, err := domain.ParseAssetKey(mainIDs[i], subIDs[i])
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Error: err.Error()})
}
