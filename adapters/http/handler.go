package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/asistenteai/asistente/adapters/message_broker"
	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/usecase"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

const (
	// MaxConcurrent bounds in-flight audio work.
	MaxConcurrent = 10

	// MaxAudioSize caps a transcription upload.
	MaxAudioSize = 10 * 1024 * 1024
)

// Validator plugs go-playground/validator into echo's binding pipeline.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Handler serves the chat API, the settings panel and the WhatsApp admin
// endpoints.
type Handler struct {
	chat      *usecase.ChatService
	settings  *usecase.SettingsService
	history   domain.HistoryStore
	users     domain.UserStore
	hasher    domain.Hasher
	tts       domain.Synthesizer
	speech    domain.Transcriber
	transport domain.ChatTransport
	broker    domain.MessageBroker
	jwtSecret []byte
}

func NewHandler(
	chat *usecase.ChatService,
	settings *usecase.SettingsService,
	history domain.HistoryStore,
	users domain.UserStore,
	hasher domain.Hasher,
	tts domain.Synthesizer,
	speech domain.Transcriber,
	transport domain.ChatTransport,
	broker domain.MessageBroker,
	jwtSecret []byte,
) *Handler {
	return &Handler{
		chat:      chat,
		settings:  settings,
		history:   history,
		users:     users,
		hasher:    hasher,
		tts:       tts,
		speech:    speech,
		transport: transport,
		broker:    broker,
		jwtSecret: jwtSecret,
	}
}

type chatRequest struct {
	Content  string `json:"content" validate:"required"`
	Username string `json:"username" validate:"required,min=2,max=20"`
}

type chatResponse struct {
	UserMessage domain.Message `json:"userMessage"`
	AIMessage   domain.Message `json:"aiMessage"`
}

// SendMessage runs one web chat turn and returns both stored sides.
func (h *Handler) SendMessage(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	identity, err := usecase.ResolveWebIdentity(req.Username)
	if err != nil {
		return validationHTTPError(err)
	}

	ctx := c.Request().Context()
	userMsg, aiMsg, err := h.chat.ProcessTurn(ctx, usecase.Inbound{
		Identity:    identity,
		DisplayName: string(identity),
		Content:     req.Content,
		Channel:     "web",
	})
	if err != nil {
		if verr := validationHTTPError(err); verr != nil {
			return verr
		}
		log.WithCtx(ctx).Error("processing web turn", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process message")
	}

	message_broker.PublishActivity(ctx, h.broker, domain.ActivityEvent{
		Type:     "message",
		Channel:  "web",
		Identity: identity,
		Text:     req.Content,
	})

	return c.JSON(http.StatusOK, chatResponse{UserMessage: userMsg, AIMessage: aiMsg})
}

// GetMessages returns the ordered history for one identity.
func (h *Handler) GetMessages(c echo.Context) error {
	identity := domain.Identity(c.Param("username"))
	if identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing username")
	}
	messages, err := h.history.ReadAll(c.Request().Context(), identity)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch messages")
	}
	return c.JSON(http.StatusOK, messages)
}

// ClearMessages wipes one identity's history. Idempotent.
func (h *Handler) ClearMessages(c echo.Context) error {
	identity := domain.Identity(c.Param("username"))
	if identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing username")
	}
	ctx := c.Request().Context()
	if err := h.history.Clear(ctx, identity); err != nil {
		// Memory is already cleared; the flush failure only affects
		// durability.
		log.WithCtx(ctx).Error("clearing messages", zap.Error(err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// ClearAllMessages wipes every conversation. Admin only.
func (h *Handler) ClearAllMessages(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.history.ClearAll(ctx); err != nil {
		log.WithCtx(ctx).Error("clearing all messages", zap.Error(err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// GetSettings returns the global settings record. Admin only.
func (h *Handler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settings.Current())
}

// UpdateSettings merges a partial settings patch. Admin only.
func (h *Handler) UpdateSettings(c echo.Context) error {
	var patch domain.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	updated, err := h.settings.Update(c.Request().Context(), patch)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("updating settings", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update settings")
	}
	return c.JSON(http.StatusOK, updated)
}

type ttsRequest struct {
	Text string `json:"text" validate:"required"`
}

// Synthesize renders text as Spanish MP3 audio.
func (h *Handler) Synthesize(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	audio, err := h.tts.Synthesize(c.Request().Context(), req.Text)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("synthesizing speech", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to synthesize speech")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// Transcribe converts an uploaded voice recording to text.
func (h *Handler) Transcribe(c echo.Context) error {
	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioSize))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read audio")
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty audio")
	}
	text, err := h.speech.Transcribe(c.Request().Context(), audio)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("transcribing audio", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to transcribe audio")
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

// ConnectWhatsApp kicks off the bridge pairing flow. The request returns
// immediately; progress is visible via status polling and the admin feed.
func (h *Handler) ConnectWhatsApp(c echo.Context) error {
	go func() {
		if err := h.transport.Connect(context.Background()); err != nil {
			log.With(zap.Error(err)).Error("whatsapp connect failed")
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "connecting"})
}

// DisconnectWhatsApp tears the bridge session down. Admin only.
func (h *Handler) DisconnectWhatsApp(c echo.Context) error {
	if err := h.transport.Disconnect(c.Request().Context()); err != nil {
		log.WithCtx(c.Request().Context()).Error("whatsapp disconnect failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to disconnect")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// WhatsAppStatus reports the connection panel state.
func (h *Handler) WhatsAppStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.transport.Status())
}

// WhatsAppQR returns the pending pairing code as a PNG data URL.
func (h *Handler) WhatsAppQR(c echo.Context) error {
	qr := h.transport.QRCode()
	if qr == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no pairing in progress")
	}
	return c.JSON(http.StatusOK, map[string]string{"qrCode": qr})
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "asistente",
	})
}

// RateLimitMiddleware bounds concurrent audio requests with a semaphore.
func (h *Handler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	semaphore := make(chan struct{}, MaxConcurrent)
	return func(c echo.Context) error {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many concurrent requests")
		}
	}
}

// validationHTTPError maps a domain validation failure to 400, or returns
// nil when err is not a validation error.
func validationHTTPError(err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}
	return nil
}
