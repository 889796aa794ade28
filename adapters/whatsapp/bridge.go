package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/asistenteai/asistente/adapters/message_broker"
	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/usecase"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// connectTimeout bounds the whole pairing sequence, QR scan included.
const connectTimeout = 3 * time.Minute

// Bridge runs the WhatsApp side of the assistant behind the
// domain.ChatTransport port: inbound message events feed the chat service,
// replies go back through the whatsmeow client.
type Bridge struct {
	chat     *usecase.ChatService
	settings *usecase.SettingsService
	broker   domain.MessageBroker
	dbPath   string

	mu           sync.Mutex
	client       *whatsmeow.Client
	qrDataURL    string
	isReady      bool
	isConnecting bool
}

func NewBridge(chat *usecase.ChatService, settings *usecase.SettingsService, broker domain.MessageBroker, dbPath string) *Bridge {
	return &Bridge{
		chat:     chat,
		settings: settings,
		broker:   broker,
		dbPath:   dbPath,
	}
}

// Connect opens the whatsmeow session. When no device is paired yet it
// starts the QR pairing flow and returns once pairing succeeds or times out.
// Calling Connect while connecting or connected is a no-op.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.isReady || b.isConnecting {
		b.mu.Unlock()
		return nil
	}
	b.isConnecting = true
	b.mu.Unlock()

	err := b.connect(ctx)
	if err != nil {
		b.mu.Lock()
		b.isConnecting = false
		b.mu.Unlock()
		b.publishStatus(ctx)
		return &domain.TransportError{Op: "connect", Err: err}
	}
	return nil
}

func (b *Bridge) connect(ctx context.Context) error {
	logger := log.With(zap.String("channel", "whatsapp"))

	container, err := sqlstore.New(ctx, "sqlite3", "file:"+b.dbPath+"?_foreign_keys=on", newWALogger(logger, "Database"))
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, newWALogger(logger, "Client"))
	client.AddEventHandler(b.handleEvent)

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()

	if client.Store.ID == nil {
		// Fresh session: the QR channel must be consumed before Connect.
		qrCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("opening qr channel: %w", err)
		}
		if err := client.Connect(); err != nil {
			cancel()
			return fmt.Errorf("connecting: %w", err)
		}
		go func() {
			defer cancel()
			b.consumeQR(qrCtx, qrChan)
		}()
		return nil
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

func (b *Bridge) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			png, err := qrcode.Encode(item.Code, qrcode.Medium, 256)
			if err != nil {
				log.WithCtx(ctx).Error("encoding pairing qr", zap.Error(err))
				continue
			}
			b.mu.Lock()
			b.qrDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
			b.mu.Unlock()
			b.publishStatus(ctx)

		case whatsmeow.QRChannelSuccess.Event:
			log.WithCtx(ctx).Info("whatsapp pairing succeeded")
			b.mu.Lock()
			b.qrDataURL = ""
			b.mu.Unlock()
			b.publishStatus(ctx)

		default:
			log.WithCtx(ctx).Warn("whatsapp pairing ended", zap.String("event", item.Event))
			b.mu.Lock()
			b.qrDataURL = ""
			b.isConnecting = false
			b.mu.Unlock()
			b.publishStatus(ctx)
		}
	}
}

// Disconnect tears the session down. Established web conversations are
// unaffected.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.qrDataURL = ""
	b.isReady = false
	b.isConnecting = false
	b.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	b.publishStatus(ctx)
	return nil
}

func (b *Bridge) Status() domain.TransportStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.TransportStatus{
		IsReady:      b.isReady,
		IsConnecting: b.isConnecting,
		HasQR:        b.qrDataURL != "",
	}
}

func (b *Bridge) QRCode() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.qrDataURL
}

// SendMessage delivers text to a "whatsapp_" identity.
func (b *Bridge) SendMessage(ctx context.Context, identity domain.Identity, text string) error {
	number := strings.TrimPrefix(string(identity), "whatsapp_")
	jid, err := parseJID(number)
	if err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	return b.send(ctx, jid, text)
}

func (b *Bridge) send(ctx context.Context, to types.JID, text string) error {
	b.mu.Lock()
	client := b.client
	ready := b.isReady
	b.mu.Unlock()

	if client == nil || !ready {
		return &domain.TransportError{Op: "send", Err: fmt.Errorf("client is not ready")}
	}
	_, err := client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return &domain.TransportError{Op: "send", Err: err}
	}
	return nil
}

func parseJID(raw string) (types.JID, error) {
	if strings.ContainsRune(raw, '@') {
		return types.ParseJID(raw)
	}
	return types.NewJID(raw, types.DefaultUserServer), nil
}

func (b *Bridge) publishStatus(ctx context.Context) {
	status := b.Status()
	message_broker.PublishActivity(ctx, b.broker, domain.ActivityEvent{
		Type:    "whatsapp_status",
		Channel: "whatsapp",
		Status:  &status,
	})
}
