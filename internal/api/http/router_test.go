package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/nftix/ticket-lifecycle/internal/api/http/handlers"
	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/events"
	"github.com/nftix/ticket-lifecycle/internal/keylock"
	"github.com/nftix/ticket-lifecycle/internal/observability"
	"github.com/nftix/ticket-lifecycle/internal/repository/memory"
	"github.com/nftix/ticket-lifecycle/internal/service"
)

type testServer struct {
	app   *fiber.App
	store *memory.Store
	svc   *service.LifecycleService
	logs  *observer.ObservedLogs
}

func newTestServer(t *testing.T, tokens *auth.TokenManager) *testServer {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	metrics := observability.NewMetrics()
	store := memory.NewStore()
	svc := service.NewLifecycleService(service.LifecycleDependencies{
		Store:        store,
		Locker:       keylock.NewLocalLocker(),
		Dispatcher:   events.NewInMemoryDispatcher(),
		Metrics:      metrics,
		Logger:       logger,
		QRSecretCost: bcrypt.MinCost,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("nft-ticketing-service", "test", store, nil),
		Lifecycle:       handlers.NewLifecycleHandler(svc),
		Webhook:         handlers.NewWebhookHandler(svc, logger),
		RelayMiddleware: auth.NewRelayMiddleware(tokens),
		Metrics:         metrics,
		MetricsPath:     "/metrics",
	})
	return &testServer{app: app, store: store, svc: svc, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) mint(t *testing.T, id, eventID, holder, secret string) {
	t.Helper()
	_, err := s.svc.MintTicket(context.Background(), service.MintInput{
		TicketID: id, EventID: eventID, Holder: holder, QRSecret: secret,
	})
	require.NoError(t, err)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "GET", "/health", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	status, body = s.do(t, "GET", "/health/ready", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])

	s.store.SetFault(errors.New("down"))
	status, body = s.do(t, "GET", "/health/ready", "")
	assert.Equal(t, 503, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestValidateTicketFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.mint(t, "1", "1001", "0x742d35Cc6634C0532925a3b8D4C9db96590c6C87", "S1")

	status, body := s.do(t, "POST", "/validateTicket", `{"tokenId":1,"qrCode":"S2","scannerAddress":"0xGate"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "QR_MISMATCH", errorCode(body))

	status, body = s.do(t, "POST", "/validateTicket", `{"tokenId":"1","qrCode":"S1","scannerAddress":"0xGate"}`)
	require.Equal(t, 200, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Ticket validated successfully", body["message"])
	info := body["ticketInfo"].(map[string]any)
	assert.Equal(t, "ATTENDED", info["state"])
	assert.Equal(t, "0x742d35cc6634c0532925a3b8d4c9db96590c6c87", info["holder"])

	status, body = s.do(t, "POST", "/validateTicket", `{"tokenId":"1","qrCode":"S1","scannerAddress":"0xGate"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "ALREADY_USED", errorCode(body))

	status, body = s.do(t, "POST", "/validateTicket", `{"tokenId":"1"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(body))

	status, body = s.do(t, "POST", "/validateTicket", `{"tokenId":"99","qrCode":"S1","scannerAddress":"0xGate"}`)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, _ = s.do(t, "POST", "/validateTicket", `{not json`)
	assert.Equal(t, 400, status)
}

func TestLoyaltyRewardAndStats(t *testing.T) {
	s := newTestServer(t, nil)
	s.mint(t, "1", "1001", "0xAbC", "S1")
	status, _ := s.do(t, "POST", "/validateTicket", `{"tokenId":"1","qrCode":"S1","scannerAddress":"0xgate"}`)
	require.Equal(t, 200, status)

	status, body := s.do(t, "POST", "/processLoyaltyReward", `{"attendeeAddress":"0xABC","eventId":1001,"isEarlyBird":true}`)
	require.Equal(t, 200, status, body)
	assert.Equal(t, "Loyalty reward processed", body["message"])
	reward := body["reward"].(map[string]any)
	assert.Equal(t, 150.0, reward["amount"])
	assert.Equal(t, 100.0, reward["baseReward"])
	assert.Equal(t, 50.0, reward["earlyBirdBonus"])

	status, body = s.do(t, "POST", "/processLoyaltyReward", `{"attendeeAddress":"0xabc","eventId":"1001","isEarlyBird":true}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "ALREADY_CLAIMED", errorCode(body))
	assert.Equal(t, "Reward already claimed for this event", body["error"].(map[string]any)["message"])

	status, body = s.do(t, "GET", "/getEventStats?eventId=1001", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "1001", body["eventId"])
	assert.Equal(t, 1.0, body["totalAttendees"])
	assert.Equal(t, 1.0, body["totalRewards"])
	assert.Equal(t, 150.0, body["totalTokensDistributed"])
	assert.Len(t, body["attendees"], 1)

	status, body = s.do(t, "GET", "/tickets/1", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "REWARDED", body["state"])
	assert.NotNil(t, body["rewardedAt"])

	status, body = s.do(t, "GET", "/getEventStats", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(body))
}

func TestGetUserTickets(t *testing.T) {
	s := newTestServer(t, nil)
	s.mint(t, "1", "1001", "0xAbC", "S1")
	s.mint(t, "2", "1002", "0xabc", "S2")

	status, body := s.do(t, "GET", "/getUserTickets?userAddress=0xABC", "")
	require.Equal(t, 200, status)
	tickets := body["tickets"].([]any)
	require.Len(t, tickets, 2)
	first := tickets[0].(map[string]any)
	assert.Equal(t, "1", first["tokenId"])
	assert.Equal(t, "UNUSED", first["state"])
	assert.Nil(t, first["attendedAt"])
	assert.NotContains(t, first, "qrSecretHash")

	status, body = s.do(t, "GET", "/getUserTickets?userAddress=0xnobody", "")
	require.Equal(t, 200, status)
	assert.Empty(t, body["tickets"])

	status, _ = s.do(t, "GET", "/getUserTickets", "")
	assert.Equal(t, 400, status)
}

func TestBlockchainWebhook(t *testing.T) {
	s := newTestServer(t, nil)

	mint := `{"event":"TicketMinted","data":{"tokenId":7,"eventId":1001,"holder":"0xHolder","qrCode":"S7"}}`
	status, body := s.do(t, "POST", "/blockchainWebhook", mint)
	require.Equal(t, 200, status, body)
	assert.Equal(t, "Webhook processed", body["message"])
	assert.Equal(t, true, body["applied"])

	status, body = s.do(t, "POST", "/blockchainWebhook", mint)
	require.Equal(t, 200, status)
	assert.Equal(t, false, body["applied"])

	scan := `{"event":"TicketScanned","data":{"tokenId":"7","scanner":"0xRelay"}}`
	status, body = s.do(t, "POST", "/blockchainWebhook", scan)
	require.Equal(t, 200, status, body)
	assert.Equal(t, true, body["applied"])
	status, body = s.do(t, "POST", "/blockchainWebhook", scan)
	require.Equal(t, 200, status)
	assert.Equal(t, false, body["applied"])

	unlock := `{"event":"RewardUnlocked","data":{"tokenId":"7","holder":"0xHolder"}}`
	status, body = s.do(t, "POST", "/blockchainWebhook", unlock)
	require.Equal(t, 200, status, body)
	assert.Equal(t, true, body["applied"])

	status, body = s.do(t, "GET", "/tickets/7", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "ATTENDED", body["state"])
	assert.Equal(t, "0xholder", body["holder"])

	status, body = s.do(t, "POST", "/blockchainWebhook", `{"event":"EventCancelled","data":{}}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "UNKNOWN_EVENT", errorCode(body))

	status, body = s.do(t, "POST", "/blockchainWebhook", `{"event":"TicketScanned"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(body))
}

func TestBlockchainWebhook_RelayAuth(t *testing.T) {
	tokens := auth.NewTokenManager("relay-secret", 5)
	s := newTestServer(t, tokens)
	payload := `{"event":"RewardUnlocked","data":{"tokenId":"7","holder":"0xabc"}}`

	status, body := s.do(t, "POST", "/blockchainWebhook", payload)
	assert.Equal(t, 401, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	other, _, err := tokens.GenerateToken("someone-else")
	require.NoError(t, err)
	status, _ = s.do(t, "POST", "/blockchainWebhook", payload, "Authorization", "Bearer "+other)
	assert.Equal(t, 401, status)

	relay, _, err := tokens.GenerateToken(auth.RelaySubject)
	require.NoError(t, err)
	status, _ = s.do(t, "POST", "/blockchainWebhook", payload, "Authorization", "Bearer "+relay)
	assert.Equal(t, 200, status)

	processed := s.logs.FilterMessage("chain event processed").All()
	require.Len(t, processed, 1)
	assert.Equal(t, auth.RelaySubject, processed[0].ContextMap()["relay"])
}

func TestBlockchainWebhook_MintWithoutQRCode(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "POST", "/blockchainWebhook",
		`{"event":"TicketMinted","data":{"tokenId":8,"eventId":1001,"holder":"0xHolder"}}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(body))
	e, _ := body["error"].(map[string]any)
	details, ok := e["details"].(map[string]any)
	require.True(t, ok, body)
	assert.Contains(t, details["hint"], "getTicketInfo")

	status, _ = s.do(t, "GET", "/tickets/8", "")
	assert.Equal(t, 404, status)
}

func TestStorageFaultIs503(t *testing.T) {
	s := newTestServer(t, nil)
	s.mint(t, "1", "1001", "0xabc", "S1")
	s.store.SetFault(errors.New("connection reset"))

	status, body := s.do(t, "POST", "/validateTicket", `{"tokenId":"1","qrCode":"S1","scannerAddress":"0xgate"}`)
	assert.Equal(t, 503, status)
	assert.Equal(t, "STORAGE_UNAVAILABLE", errorCode(body))
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "GET", "/nope", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestPanicRecovered(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/boom", func(*fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}
