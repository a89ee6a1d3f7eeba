package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	TOTPPeriod = 30
	// TOTPSkew is the number of adjacent time steps accepted on each side.
	TOTPSkew = 2
)

var totpOpts = totp.ValidateOpts{
	Period:    TOTPPeriod,
	Skew:      TOTPSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// VerifyTOTP checks code against a base32 secret at instant at.
func VerifyTOTP(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totpOpts)
	return err == nil && ok
}

// TOTPCode returns the code for secret at instant at.
func TOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totpOpts)
}

type TOTPEnrollment struct {
	Secret string
	URL    string
	// QRCode is a data: URL of a PNG rendering of URL.
	QRCode string
}

func NewTOTPEnrollment(issuer, account string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      TOTPPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}
	img, err := key.Image(256, 256)
	if err != nil {
		return nil, fmt.Errorf("totp qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("totp png: %w", err)
	}
	return &TOTPEnrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
