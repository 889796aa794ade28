package main

import (
	"context"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"

	"github.com/asistenteai/asistente/adapters/hasher"
	handlers "github.com/asistenteai/asistente/adapters/http"
	"github.com/asistenteai/asistente/adapters/llm"
	"github.com/asistenteai/asistente/adapters/message_broker"
	"github.com/asistenteai/asistente/adapters/speech"
	"github.com/asistenteai/asistente/adapters/storage/sqlite"
	"github.com/asistenteai/asistente/adapters/tts"
	"github.com/asistenteai/asistente/adapters/websocket"
	"github.com/asistenteai/asistente/adapters/whatsapp"
	"github.com/asistenteai/asistente/usecase"
)

func main() {
	gotenv.Load()
	ctx := context.Background()

	dataDir := envOr("DATA_DIR", "data")
	store, err := sqlite.Open(filepath.Join(dataDir, "asistente.db"))
	if err != nil {
		stdlog.Fatal(err)
	}
	defer store.Close()

	settingsRecord, err := store.LoadSettings(ctx)
	if err != nil {
		stdlog.Fatal(err)
	}
	apiKey := settingsRecord.GeminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	geminiLlm := llm.NewGeminiClient(ctx, apiKey)

	settingsSvc, err := usecase.NewSettingsService(ctx, store, geminiLlm)
	if err != nil {
		stdlog.Fatal(err)
	}
	chatSvc := usecase.NewChatService(geminiLlm, store, settingsSvc)

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	wsServer := websocket.NewServer(broker)
	wsServer.RunWebsocketHub()

	bridge := whatsapp.NewBridge(chatSvc, settingsSvc, broker, filepath.Join(dataDir, "whatsapp.db"))

	googleTTS := tts.NewGoogleTTS()
	googleSpeech := speech.NewGoogleSpeech()

	handler := handlers.NewHandler(
		chatSvc,
		settingsSvc,
		store,
		store,
		hasher.New(),
		googleTTS,
		googleSpeech,
		bridge,
		broker,
		[]byte(envOr("JWT_SECRET", "change-me-in-production")),
	)

	e := echo.New()
	e.Validator = handlers.NewValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))
	e.Use(middleware.BodyLimit("10M"))

	api := e.Group("/api")

	api.GET("/health", handler.HealthCheck)

	api.POST("/auth/register", handler.Register)
	api.POST("/auth/login", handler.Login)
	api.POST("/auth/admin", handler.AdminLogin)

	api.GET("/messages/:username", handler.GetMessages)
	api.POST("/messages", handler.SendMessage)
	api.DELETE("/messages/:username", handler.ClearMessages)
	api.DELETE("/messages", handler.ClearAllMessages, handler.AdminJWTMiddleware)

	audio := api.Group("", handler.RateLimitMiddleware)
	audio.POST("/tts", handler.Synthesize)
	audio.POST("/transcribe", handler.Transcribe)

	admin := api.Group("", handler.AdminJWTMiddleware)
	admin.GET("/settings", handler.GetSettings)
	admin.PATCH("/settings", handler.UpdateSettings)
	admin.POST("/whatsapp/connect", handler.ConnectWhatsApp)
	admin.POST("/whatsapp/disconnect", handler.DisconnectWhatsApp)
	admin.GET("/whatsapp/status", handler.WhatsAppStatus)
	admin.GET("/whatsapp/qr", handler.WhatsAppQR)

	ws := e.Group("/ws", handler.AdminJWTMiddleware)
	ws.GET("/admin", wsServer.Handler)

	stdlog.Fatal(e.Start(":" + envOr("PORT", "8080")))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
