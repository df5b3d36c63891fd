package rpc

import (
	"net/http"
)

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, err := s.node.Claim(caller, params.Catalogs, params.Quantities, params.Collections)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	out := claimResult{
		TotalCost: result.TotalCost.String(),
		Balance:   result.Balance.String(),
		Receipts:  make([]claimReceiptResult, len(result.Receipts)),
	}
	for i, receipt := range result.Receipts {
		out.Receipts[i] = claimReceiptResult{
			Catalog:  receipt.Catalog,
			Quantity: receipt.Quantity,
			Cost:     receipt.Cost.String(),
			Kind:     receipt.Kind.String(),
			TokenIDs: receipt.TokenIDs,
			OffChain: receipt.OffChain,
		}
	}
	writeResult(w, req.ID, out)
}
