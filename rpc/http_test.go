package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/core"
	"stakevault/core/state"
	"stakevault/native/assets"
	"stakevault/storage"
)

const testToken = "test-admin-token"

type testEnv struct {
	server  *httptest.Server
	node    *core.Node
	nft     *assets.MemNFT
	poolNFT *assets.MemNFT
	custody [20]byte
}

func testAddrHex(b byte) string {
	var addr [20]byte
	addr[19] = b
	return formatAddressParam(addr)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	require.NoError(t, err)

	env := &testEnv{
		nft:     assets.NewMemNFT(),
		poolNFT: assets.NewMemNFT(),
	}
	env.custody[19] = 0xCC
	source := assets.NewMemSource()
	source.NFTs[1] = env.nft
	source.NFTs[10] = env.poolNFT

	node, err := core.NewNode(manager, source, env.custody, nil)
	require.NoError(t, err)
	env.node = node

	var admin [20]byte
	admin[19] = 9
	require.NoError(t, node.GrantAdmin(admin))

	rpcServer := NewServer(node, nil)
	rpcServer.SetAuthToken(testToken)
	env.server = httptest.NewServer(rpcServer.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) call(t *testing.T, method string, params interface{}, token string) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded
}

func (env *testEnv) registerCollection(t *testing.T) {
	t.Helper()
	resp := env.call(t, "admin_registerCollection", map[string]interface{}{
		"caller":     testAddrHex(9),
		"collection": 1,
		"active":     true,
		"kind":       "uniqueNFT",
		"baseRate":   "10",
	}, testToken)
	require.Nil(t, resp.Error)
}

func TestStakeAndBalanceRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.registerCollection(t)

	var alice [20]byte
	alice[19] = 1
	require.NoError(t, env.nft.Mint(alice, 11))

	resp := env.call(t, "stake_stake", map[string]interface{}{
		"caller":     testAddrHex(1),
		"collection": 1,
		"tokenIds":   []uint64{11},
	}, "")
	require.Nil(t, resp.Error)

	resp = env.call(t, "stake_balance", map[string]interface{}{
		"owner":       testAddrHex(1),
		"collections": []uint64{1},
	}, "")
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, "0", result["balance"])

	resp = env.call(t, "stake_position", map[string]interface{}{
		"owner":      testAddrHex(1),
		"collection": 1,
	}, "")
	require.Nil(t, resp.Error)
	position := resp.Result.(map[string]interface{})
	require.Len(t, position["tokenIds"], 1)
}

func TestStakeErrorsSurfaceAsRPCErrors(t *testing.T) {
	env := newTestEnv(t)
	env.registerCollection(t)

	resp := env.call(t, "stake_stake", map[string]interface{}{
		"caller":     testAddrHex(1),
		"collection": 1,
		"tokenIds":   []uint64{11},
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.call(t, "admin_setStatus", map[string]interface{}{
		"caller": testAddrHex(9),
		"status": "archived",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = env.call(t, "admin_setStatus", map[string]interface{}{
		"caller": testAddrHex(9),
		"status": "archived",
	}, "wrong-token")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = env.call(t, "admin_setStatus", map[string]interface{}{
		"caller": testAddrHex(9),
		"status": "archived",
	}, testToken)
	require.Nil(t, resp.Error)

	// the archived gate now rejects staking
	env2resp := env.call(t, "stake_stake", map[string]interface{}{
		"caller":     testAddrHex(1),
		"collection": 1,
		"tokenIds":   []uint64{11},
	}, "")
	require.NotNil(t, env2resp.Error)
}

func TestSetStatusRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)
	resp := env.call(t, "admin_setStatus", map[string]interface{}{
		"caller": testAddrHex(5), // no role
		"status": "archived",
	}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	resp := env.call(t, "stake_bogus", nil, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.Client().Post(env.server.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeParseError, decoded.Error.Code)
}

func TestClaimOverRPC(t *testing.T) {
	env := newTestEnv(t)
	env.registerCollection(t)

	resp := env.call(t, "admin_upsertEntry", map[string]interface{}{
		"caller":  testAddrHex(9),
		"catalog": 1,
		"name":    "tour hoodie",
		"kind":    "physical",
		"cost":    "20",
		"hurdle":  "100",
		"stock":   5,
	}, testToken)
	require.Nil(t, resp.Error)

	var alice [20]byte
	alice[19] = 1
	require.NoError(t, env.nft.Mint(alice, 11))

	resp = env.call(t, "stake_stake", map[string]interface{}{
		"caller":     testAddrHex(1),
		"collection": 1,
		"tokenIds":   []uint64{11},
	}, "")
	require.Nil(t, resp.Error)

	// no accrual yet, claims must fail
	resp = env.call(t, "claims_claim", map[string]interface{}{
		"caller":      testAddrHex(1),
		"catalogs":    []uint64{1},
		"quantities":  []uint64{1},
		"collections": []uint64{1},
	}, "")
	require.NotNil(t, resp.Error)

	// grant enough points to clear the hurdle and the cost
	resp = env.call(t, "admin_grantPoints", map[string]interface{}{
		"caller": testAddrHex(9),
		"owner":  testAddrHex(1),
		"delta":  "150",
	}, testToken)
	require.Nil(t, resp.Error)

	resp = env.call(t, "claims_claim", map[string]interface{}{
		"caller":      testAddrHex(1),
		"catalogs":    []uint64{1},
		"quantities":  []uint64{2},
		"collections": []uint64{1},
	}, "")
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, "40", result["totalCost"])

	resp = env.call(t, "vault_entry", map[string]interface{}{"catalog": 1}, "")
	require.Nil(t, resp.Error)
	entry := resp.Result.(map[string]interface{})
	require.Equal(t, float64(3), entry["stock"])

	resp = env.call(t, "claims_history", map[string]interface{}{"catalog": 1}, "")
	require.Nil(t, resp.Error)
	history := resp.Result.([]interface{})
	require.Len(t, history, 1)
}

func TestBalanceReflectsGrantedPoints(t *testing.T) {
	env := newTestEnv(t)
	resp := env.call(t, "admin_grantPoints", map[string]interface{}{
		"caller": testAddrHex(9),
		"owner":  testAddrHex(2),
		"delta":  big.NewInt(75).String(),
	}, testToken)
	require.Nil(t, resp.Error)

	resp = env.call(t, "stake_balance", map[string]interface{}{"owner": testAddrHex(2)}, "")
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, fmt.Sprintf("%d", 75), result["balance"])
}
