package interfaces

import "context"

// QRCodeRenderer shows a login QR code image to the user
type QRCodeRenderer interface {
	Render(ctx context.Context, image []byte) error
}

// Notifier delivers a short human readable message
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
