package domain

import "context"

// TransportStatus mirrors the connection panel view of the WhatsApp bridge.
type TransportStatus struct {
	IsReady      bool `json:"isReady"`
	IsConnecting bool `json:"isConnecting"`
	HasQR        bool `json:"hasQR"`
}

// ChatTransport is an opaque inbound-event source plus a send primitive. The
// core assumes nothing about its session or auth mechanics.
type ChatTransport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Status() TransportStatus

	// QRCode returns the current pairing code as a PNG data URL, empty when
	// no pairing is pending.
	QRCode() string

	// SendMessage delivers text to a transport identity.
	SendMessage(ctx context.Context, identity Identity, text string) error
}

// Synthesizer turns reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
