package token

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/festpay/wallet-engine/ledger"
)

// DefaultPassSize is the pixel width of a rendered pass QR code.
const DefaultPassSize = 256

// PassPNG renders the printable entry-pass QR code for a student or
// stall: the encoded identity token as a PNG image.
func PassPNG(id string, role ledger.Role, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultPassSize
	}
	payload, err := Codec{}.Encode(id, role)
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to render PNG: %w", err)
	}
	return png, nil
}
