package helpers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPasswordStrong(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Str0ng!pass", true},
		{"Sh0rt!", false},
		{"alllowercase1!", false},
		{"ALLUPPERCASE1!", false},
		{"NoDigits!!", false},
		{"NoSpecial12", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPasswordStrong(tt.password))
		})
	}
}

func TestGenerateQRCode_RoundTrip(t *testing.T) {
	dataURL, png, err := GenerateQRCode("https://eventify.com/attendance/verify/abc")
	require.NoError(t, err)
	assert.Contains(t, dataURL, "data:image/png;base64,")

	decoded, err := DecodePNGDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
	assert.True(t, bytes.HasPrefix(decoded, []byte("\x89PNG")))

	_, err = DecodePNGDataURL("data:image/jpeg;base64,AAAA")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^\d{6}$`, code)
}

func TestHmac256(t *testing.T) {
	sig := Hmac256([]byte("pp_Amount=1000"), []byte("salt"))
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Hmac256([]byte("pp_Amount=1000"), []byte("salt")))
	assert.NotEqual(t, sig, Hmac256([]byte("pp_Amount=1001"), []byte("salt")))
}
