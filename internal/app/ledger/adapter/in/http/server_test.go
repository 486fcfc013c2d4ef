package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/out/webhook"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/kvcache"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := memory.NewStore()
	txlog, err := memory.NewLog(nil)
	require.NoError(t, err)

	core := usecase.NewTransferCoordinator(store, txlog, webhook.NopAlerter{}, zap.NewNop())
	resolver := identity.NewResolver(identity.NewRevocationList(kvcache.NewMemory()), store)

	app := fiber.New()
	NewServer(core, zap.NewNop()).Register(app, resolver)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NoError(t, resp.Body.Close())
	return resp, payload
}

func TestSignupCreditTransferFlow(t *testing.T) {
	app := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/v1/api/signup",
		map[string]string{"owner_id": "owner-a", "phone_number": "+886911111111"}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	sender, _ := payload["account_number"].(string)
	require.Equal(t, "886911111111", sender)

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/signup",
		map[string]string{"owner_id": "owner-b", "phone_number": "+886922222222"}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	receiver, _ := payload["account_number"].(string)

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/credit-acct",
		map[string]string{"account_number": sender, "amount": "100.00"}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Transaction Successful", payload["message"])
	assert.Equal(t, "100.00", payload["balance"])

	caller := map[string]string{"X-Caller-Subject": "owner-a", "X-Caller-Token": "token"}
	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": receiver, "amount": "30.50", "remarks": "rent"}, caller)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Transaction Successful", payload["message"])
	assert.NotEmpty(t, payload["reference"])

	resp, payload = doJSON(t, app, fiber.MethodGet, "/v1/api/balance/"+sender, nil, caller)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "69.50", payload["balance"])
}

func TestTransferErrorMapping(t *testing.T) {
	app := newTestApp(t)

	_, payload := doJSON(t, app, fiber.MethodPost, "/v1/api/signup",
		map[string]string{"owner_id": "owner-a", "phone_number": "+886911111111"}, nil)
	sender, _ := payload["account_number"].(string)
	_, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/signup",
		map[string]string{"owner_id": "owner-b", "phone_number": "+886922222222"}, nil)
	receiver, _ := payload["account_number"].(string)

	doJSON(t, app, fiber.MethodPost, "/v1/api/credit-acct",
		map[string]string{"account_number": sender, "amount": "10.00"}, nil)

	caller := map[string]string{"X-Caller-Subject": "owner-a", "X-Caller-Token": "token"}

	resp, payload := doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": sender, "amount": "5.00"}, caller)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot transfer to the same account number", payload["message"])

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": "000000000000", "amount": "5.00"}, caller)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid account number", payload["message"])

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": receiver, "amount": "1.234"}, caller)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid transfer amount", payload["message"])

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": receiver, "amount": "99.00"}, caller)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Insufficient account balance", payload["message"])

	// No identity header at all.
	resp, _ = doJSON(t, app, fiber.MethodPost, "/v1/api/transfer",
		map[string]string{"to": receiver, "amount": "5.00"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreditErrorMapping(t *testing.T) {
	app := newTestApp(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/v1/api/credit-acct",
		map[string]string{"account_number": "000000000000", "amount": "10"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid account number", payload["message"])

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/credit-acct",
		map[string]string{"account_number": "", "amount": "10"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Account number must be provided", payload["message"])

	_, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/signup",
		map[string]string{"owner_id": "owner-a", "phone_number": "+886911111111"}, nil)
	number, _ := payload["account_number"].(string)

	resp, payload = doJSON(t, app, fiber.MethodPost, "/v1/api/credit-acct",
		map[string]string{"account_number": number, "amount": "-5"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid credit amount", payload["message"])
}
