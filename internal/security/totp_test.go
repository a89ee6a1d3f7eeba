package security_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/syncora/internal/security"
)

const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

// stepStart is aligned to a 30s boundary so offsets land in exact steps.
var stepStart = time.Unix(1_700_000_010, 0).UTC()

func TestVerifyTOTP_WindowBoundaries(t *testing.T) {
	code, err := security.TOTPCode(testSecret, stepStart)
	require.NoError(t, err)

	step := time.Duration(security.TOTPPeriod) * time.Second
	for k := -2; k <= 2; k++ {
		at := stepStart.Add(time.Duration(k) * step)
		assert.Truef(t, security.VerifyTOTP(testSecret, code, at), "step %+d must be accepted", k)
	}
	for _, k := range []int{-3, 3, 4} {
		at := stepStart.Add(time.Duration(k) * step)
		assert.Falsef(t, security.VerifyTOTP(testSecret, code, at), "step %+d must be rejected", k)
	}
}

func TestVerifyTOTP_RejectsGarbage(t *testing.T) {
	now := time.Now()
	assert.False(t, security.VerifyTOTP(testSecret, "", now))
	assert.False(t, security.VerifyTOTP("", "123456", now))
	assert.False(t, security.VerifyTOTP(testSecret, "abcdef", now))
	assert.False(t, security.VerifyTOTP(testSecret, "1234567", now))
}

func TestNewTOTPEnrollment(t *testing.T) {
	e, err := security.NewTOTPEnrollment("Syncora", "a@x.com")
	require.NoError(t, err)

	assert.NotEmpty(t, e.Secret)
	assert.True(t, strings.HasPrefix(e.URL, "otpauth://totp/"))
	assert.Contains(t, e.URL, "issuer=Syncora")
	assert.Contains(t, e.URL, "secret="+e.Secret)
	assert.True(t, strings.HasPrefix(e.QRCode, "data:image/png;base64,"))

	now := time.Now()
	code, err := security.TOTPCode(e.Secret, now)
	require.NoError(t, err)
	assert.True(t, security.VerifyTOTP(e.Secret, code, now))

	other, err := security.NewTOTPEnrollment("Syncora", "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, e.Secret, other.Secret)
}
