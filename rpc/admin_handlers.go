package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/native/vault"
)

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setStatusParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var status nativecommon.Status
	switch strings.TrimSpace(params.Status) {
	case "public":
		status = nativecommon.StatusPublic
	case "archived":
		status = nativecommon.StatusArchived
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown status %q", params.Status), nil)
		return
	}
	if err := s.node.SetStatus(caller, status); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleGrantPoints(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params grantPointsParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddressParam(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	delta, err := deltaFromString(params.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.GrantPoints(caller, owner, delta); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleSetTraits(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setTraitsParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.AdminSetTraits(caller, params.Collection, params.TokenID, params.PremiumLevel, params.SecondaryLevel); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleRegisterCollection(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params registerCollectionParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	kind, err := parseCollectionKind(params.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	baseRate := new(big.Int)
	if _, ok := baseRate.SetString(strings.TrimSpace(params.BaseRate), 10); !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid base rate", nil)
		return
	}
	premium, err := parseRates(params.PremiumBonuses)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	secondary, err := parseRates(params.SecondaryBonuses)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cfg := &staking.CollectionConfig{
		ID:               params.Collection,
		Active:           params.Active,
		Kind:             kind,
		SlotID:           params.SlotID,
		BaseRate:         baseRate,
		PremiumBonuses:   premium,
		SecondaryBonuses: secondary,
	}
	if strings.TrimSpace(params.TraitRoot) != "" {
		root, err := parseHashParam(params.TraitRoot)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		cfg.TraitRoot = root
	}
	if err := s.node.RegisterCollection(caller, cfg); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleSetTraitRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setTraitRootParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	root, err := parseHashParam(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetTraitRoot(caller, params.Collection, root); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleUpsertEntry(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params upsertEntryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	kind, err := parseEntryKind(params.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cost := new(big.Int)
	if _, ok := cost.SetString(strings.TrimSpace(params.Cost), 10); !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid cost", nil)
		return
	}
	hurdle := big.NewInt(0)
	if strings.TrimSpace(params.Hurdle) != "" {
		if _, ok := hurdle.SetString(strings.TrimSpace(params.Hurdle), 10); !ok {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid hurdle", nil)
			return
		}
	}
	entry := &vault.Entry{
		ID:       params.Catalog,
		Name:     params.Name,
		Kind:     kind,
		SlotID:   params.SlotID,
		Cost:     cost,
		Hurdle:   hurdle,
		Stock:    params.Stock,
		ClaimCap: params.ClaimCap,
		Pool:     params.Pool,
	}
	if err := s.node.UpsertVaultEntry(caller, entry); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleAddPoolTokens(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addPoolTokensParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.AddPoolTokens(caller, params.Catalog, params.TokenIDs); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}
