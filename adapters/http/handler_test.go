package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteai/asistente/adapters/storage/sqlite"
	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/usecase"
)

type fakeLlm struct {
	reply string
	err   error
}

func (f *fakeLlm) Generate(ctx context.Context, turns []domain.Turn) (string, error) {
	return f.reply, f.err
}

func (f *fakeLlm) UpdateCredential(apiKey string) {}

type fakeHistory struct {
	mu       sync.Mutex
	nextID   int64
	messages map[domain.Identity][]domain.Message
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{nextID: 1, messages: make(map[domain.Identity][]domain.Message)}
}

func (f *fakeHistory) Append(ctx context.Context, identity domain.Identity, content string, sender domain.Sender) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := domain.Message{ID: f.nextID, Content: content, Sender: sender, Identity: identity, Timestamp: time.Now()}
	f.nextID++
	f.messages[identity] = append(f.messages[identity], msg)
	return msg, nil
}

func (f *fakeHistory) ReadAll(ctx context.Context, identity domain.Identity) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages[identity]))
	copy(out, f.messages[identity])
	return out, nil
}

func (f *fakeHistory) Clear(ctx context.Context, identity domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, identity)
	return nil
}

func (f *fakeHistory) ClearAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = make(map[domain.Identity][]domain.Message)
	return nil
}

type fakeSettingsStore struct {
	saved domain.Settings
}

func (f *fakeSettingsStore) LoadSettings(ctx context.Context) (domain.Settings, error) {
	return f.saved, nil
}

func (f *fakeSettingsStore) SaveSettings(ctx context.Context, s domain.Settings) error {
	f.saved = s
	return nil
}

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[string]domain.User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return domain.User{}, sqlite.ErrUsernameTaken
	}
	user := domain.User{ID: f.nextID, Username: username, PasswordHash: passwordHash}
	f.nextID++
	f.users[username] = user
	return user, nil
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return domain.User{}, sqlite.ErrUserNotFound
	}
	return user, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) bool { return hash == "hashed:"+password }

type fakeTransport struct {
	status domain.TransportStatus
	qr     string
}

func (f *fakeTransport) Connect(ctx context.Context) error    { return nil }
func (f *fakeTransport) Disconnect(ctx context.Context) error { return nil }
func (f *fakeTransport) Status() domain.TransportStatus       { return f.status }
func (f *fakeTransport) QRCode() string                       { return f.qr }
func (f *fakeTransport) SendMessage(ctx context.Context, identity domain.Identity, text string) error {
	return nil
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte("mp3-bytes"), nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return "hola mundo", nil
}

type testEnv struct {
	e         *echo.Echo
	handler   *Handler
	history   *fakeHistory
	users     *fakeUserStore
	transport *fakeTransport
}

func newTestEnv(t *testing.T, initial domain.Settings) *testEnv {
	t.Helper()

	llm := &fakeLlm{reply: "Hola, ¿en qué puedo ayudarte?"}
	history := newFakeHistory()
	settings, err := usecase.NewSettingsService(context.Background(), &fakeSettingsStore{saved: initial}, llm)
	require.NoError(t, err)
	chat := usecase.NewChatService(llm, history, settings)

	users := newFakeUserStore()
	transport := &fakeTransport{}
	handler := NewHandler(
		chat, settings, history, users, fakeHasher{},
		fakeSynthesizer{}, fakeTranscriber{}, transport, nil,
		[]byte("test-secret"),
	)

	e := echo.New()
	e.Validator = NewValidator()
	return &testEnv{e: e, handler: handler, history: history, users: users, transport: transport}
}

func (env *testEnv) jsonRequest(method, target, body string) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, env.e.NewContext(req, rec)
}

func TestSendMessageReturnsBothSides(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	rec, c := env.jsonRequest(http.MethodPost, "/api/messages", `{"username":"alice","content":"Hola"}`)
	require.NoError(t, env.handler.SendMessage(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hola", resp.UserMessage.Content)
	assert.Equal(t, domain.SenderUser, resp.UserMessage.Sender)
	assert.Equal(t, "Hola, ¿en qué puedo ayudarte?", resp.AIMessage.Content)
	assert.Equal(t, domain.SenderAssistant, resp.AIMessage.Sender)
}

func TestSendMessageRejectsShortUsername(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	_, c := env.jsonRequest(http.MethodPost, "/api/messages", `{"username":"a","content":"Hola"}`)
	err := env.handler.SendMessage(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestSendMessageRejectsMissingContent(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	_, c := env.jsonRequest(http.MethodPost, "/api/messages", `{"username":"alice"}`)
	err := env.handler.SendMessage(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetMessages(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})
	_, err := env.history.Append(context.Background(), "alice", "hola", domain.SenderUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/alice", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.SetParamNames("username")
	c.SetParamValues("alice")

	require.NoError(t, env.handler.GetMessages(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hola", messages[0].Content)
}

func TestClearMessagesIsIdempotent(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})
	_, err := env.history.Append(context.Background(), "alice", "hola", domain.SenderUser)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/messages/alice", nil)
		rec := httptest.NewRecorder()
		c := env.e.NewContext(req, rec)
		c.SetParamNames("username")
		c.SetParamValues("alice")

		require.NoError(t, env.handler.ClearMessages(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	stored, _ := env.history.ReadAll(context.Background(), "alice")
	assert.Empty(t, stored)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	rec, c := env.jsonRequest(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, c = env.jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, "Bearer", resp["type"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	_, c := env.jsonRequest(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Register(c))

	_, c = env.jsonRequest(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"otro-pw"}`)
	err := env.handler.Register(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	_, c := env.jsonRequest(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Register(c))

	_, c = env.jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"equivocada"}`)
	err := env.handler.Login(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t, domain.Settings{AdminPassword: "admin-pw"})

	rec, c := env.jsonRequest(http.MethodPost, "/api/auth/admin", `{"password":"admin-pw"}`)
	require.NoError(t, env.handler.AdminLogin(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.jsonRequest(http.MethodPost, "/api/auth/admin", `{"password":"equivocada"}`)
	err := env.handler.AdminLogin(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAdminLoginDisabledWithoutPassword(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	_, c := env.jsonRequest(http.MethodPost, "/api/auth/admin", `{"password":"cualquiera"}`)
	err := env.handler.AdminLogin(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	rec, c := env.jsonRequest(http.MethodPost, "/api/auth/admin", `{"password":"admin-pw"}`)
	require.NoError(t, env.handler.AdminLogin(c))
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["token"]
}

func TestAdminJWTMiddlewareGuardsSettings(t *testing.T) {
	env := newTestEnv(t, domain.Settings{AdminPassword: "admin-pw"})
	guarded := env.handler.AdminJWTMiddleware(env.handler.GetSettings)

	// No token.
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	err := guarded(env.e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	// Admin token passes.
	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, env))
	rec = httptest.NewRecorder()
	require.NoError(t, guarded(env.e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminJWTMiddlewareRejectsUserToken(t *testing.T) {
	env := newTestEnv(t, domain.Settings{AdminPassword: "admin-pw"})

	rec, c := env.jsonRequest(http.MethodPost, "/api/auth/register", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Register(c))
	rec, c = env.jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secreto"}`)
	require.NoError(t, env.handler.Login(c))
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	guarded := env.handler.AdminJWTMiddleware(env.handler.GetSettings)
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+resp["token"])
	err := guarded(env.e.NewContext(req, httptest.NewRecorder()))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	env := newTestEnv(t, domain.Settings{CustomPrompt: "original", AdminPassword: "admin-pw"})

	rec, c := env.jsonRequest(http.MethodPatch, "/api/settings", `{"restrictedNumbers":"5551234567"}`)
	require.NoError(t, env.handler.UpdateSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "original", updated.CustomPrompt)
	assert.Equal(t, "5551234567", updated.RestrictedNumbers)
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	rec, c := env.jsonRequest(http.MethodPost, "/api/tts", `{"text":"Hola"}`)
	require.NoError(t, env.handler.Synthesize(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "mp3-bytes", rec.Body.String())
}

func TestTranscribeRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader(""))
	err := env.handler.Transcribe(env.e.NewContext(req, httptest.NewRecorder()))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestWhatsAppQRNotFoundWhenIdle(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})

	req := httptest.NewRequest(http.MethodGet, "/api/whatsapp/qr", nil)
	err := env.handler.WhatsAppQR(env.e.NewContext(req, httptest.NewRecorder()))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestWhatsAppQRReturnsPendingCode(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})
	env.transport.qr = "data:image/png;base64,abc"

	req := httptest.NewRequest(http.MethodGet, "/api/whatsapp/qr", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, env.handler.WhatsAppQR(env.e.NewContext(req, rec)))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "data:image/png;base64,abc", resp["qrCode"])
}

func TestWhatsAppStatus(t *testing.T) {
	env := newTestEnv(t, domain.Settings{})
	env.transport.status = domain.TransportStatus{IsConnecting: true, HasQR: true}

	req := httptest.NewRequest(http.MethodGet, "/api/whatsapp/status", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, env.handler.WhatsAppStatus(env.e.NewContext(req, rec)))

	var status domain.TransportStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsConnecting)
	assert.True(t, status.HasQR)
	assert.False(t, status.IsReady)
}
