package authclient

import (
	"bytes"
	"encoding/base64"

	"github.com/aaronarduino/goqrsvg"
	svg "github.com/ajstarks/svgo"
	"github.com/boombuler/barcode/qr"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// renderQRCodeBase64 encode une URL de vérification en QR code SVG et
// retourne une data URL base64 prête pour un client web.
func renderQRCodeBase64(content string) (string, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode qr code", err)
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	qs := goqrsvg.NewQrSVG(code, 5)
	qs.StartQrSVG(canvas)
	if err := qs.WriteQrSVG(canvas); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "write qr svg", err)
	}
	canvas.End()

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
