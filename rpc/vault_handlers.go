package rpc

import (
	"net/http"
)

func (s *Server) handleVaultEntry(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params vaultEntryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	entry, err := s.node.VaultEntry(params.Catalog)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, vaultEntryResult{
		Catalog:  entry.ID,
		Name:     entry.Name,
		Kind:     entry.Kind.String(),
		Cost:     entry.Cost.String(),
		Hurdle:   entry.Hurdle.String(),
		Stock:    entry.Stock,
		PoolSize: len(entry.Pool),
		ClaimCap: entry.ClaimCap,
	})
}

func (s *Server) handleClaimHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimHistoryParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	log, err := s.node.ClaimHistory(params.Catalog)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	entries := make([]claimHistoryEntry, len(log))
	for i, redemption := range log {
		entries[i] = claimHistoryEntry{
			Claimant: formatAddressParam(redemption.Claimant),
			Quantity: redemption.Quantity,
		}
	}
	writeResult(w, req.ID, entries)
}
