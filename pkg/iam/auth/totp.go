package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"

	"github.com/pquerna/otp/totp"

	"github.com/klubhub/klubhub/pkg/errx"
)

// TOTPManager wraps TOTP secret generation and code validation.
type TOTPManager struct {
	issuer string
}

// NewTOTPManager creates the manager. The issuer shows up in authenticator
// apps next to the account name.
func NewTOTPManager(issuer string) *TOTPManager {
	if issuer == "" {
		issuer = "klubhub"
	}
	return &TOTPManager{issuer: issuer}
}

// TOTPSetup is what the setup flow hands back to the client.
type TOTPSetup struct {
	Secret    string
	QRCodeURI string
	OTPAuthURL string
}

// GenerateSecret creates a fresh TOTP secret plus a QR code rendered as a
// PNG data URI, ready for an <img> tag.
func (m *TOTPManager) GenerateSecret(accountName string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, errx.Wrap(err, "failed to generate TOTP secret", errx.TypeInternal)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, errx.Wrap(err, "failed to render TOTP QR code", errx.TypeInternal)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errx.Wrap(err, "failed to encode TOTP QR code", errx.TypeInternal)
	}

	return &TOTPSetup{
		Secret:     key.Secret(),
		QRCodeURI:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		OTPAuthURL: key.URL(),
	}, nil
}

// ValidateCode checks a 6-digit code against a secret.
func (m *TOTPManager) ValidateCode(code, secret string) bool {
	return totp.Validate(code, secret)
}

// backupCodeCount codes are issued when 2FA is enabled, each usable once.
const backupCodeCount = 10

// GenerateBackupCodes returns plaintext backup codes in xxxx-xxxx form. The
// caller hashes them before persisting; the plaintext is shown exactly once.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, errx.Wrap(err, "failed to generate backup codes", errx.TypeInternal)
		}
		s := hex.EncodeToString(raw)
		codes[i] = fmt.Sprintf("%s-%s", s[:4], s[4:])
	}
	return codes, nil
}
