package token_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festpay/wallet-engine/ledger"
	"github.com/festpay/wallet-engine/token"
)

// =============================================================================
// CODEC TESTS
// =============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	codec := token.Codec{}

	cases := []struct {
		id   string
		role ledger.Role
	}{
		{"user-1", ledger.RoleStudent},
		{"stall-2", ledger.RoleStall},
	}
	for _, tc := range cases {
		payload, err := codec.Encode(tc.id, tc.role)
		require.NoError(t, err)

		id, role, err := codec.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, tc.id, id)
		assert.Equal(t, tc.role, role)
	}
}

func TestCodec_Encode_PayloadShape(t *testing.T) {
	payload, err := token.Codec{}.Encode("user-7", ledger.RoleStudent)
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(payload), &m))
	assert.Equal(t, map[string]string{"id": "user-7", "role": "student"}, m)
}

func TestCodec_Encode_RefusesAdmin(t *testing.T) {
	_, err := token.Codec{}.Encode("admin-1", ledger.RoleAdmin)
	assert.ErrorIs(t, err, ledger.ErrMalformedToken)

	_, err = token.Codec{}.Encode("x", ledger.Role("superuser"))
	assert.ErrorIs(t, err, ledger.ErrMalformedToken)
}

func TestCodec_Decode_Malformed(t *testing.T) {
	codec := token.Codec{}

	for _, payload := range []string{
		"",
		"garbage",
		"[]",
		`{"id":"","role":"student"}`,
		`{"id":"user-1","role":""}`,
		`{"id":"user-1"}`,
		`{"role":"stall"}`,
		`{"id":"admin-1","role":"admin"}`,
		`{"id":"x","role":"wizard"}`,
	} {
		_, _, err := codec.Decode(payload)
		assert.ErrorIs(t, err, ledger.ErrMalformedToken, "payload %q", payload)
	}
}

func TestCodec_Decode_IgnoresExtraFields(t *testing.T) {
	id, role, err := token.Codec{}.Decode(`{"id":"stall-1","role":"stall","extra":true}`)

	require.NoError(t, err)
	assert.Equal(t, "stall-1", id)
	assert.Equal(t, ledger.RoleStall, role)
}

// =============================================================================
// PASS RENDERING TESTS
// =============================================================================

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPassPNG_RendersPNG(t *testing.T) {
	png, err := token.PassPNG("user-1", ledger.RoleStudent, token.DefaultPassSize)

	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "output should be a PNG image")
}

func TestPassPNG_RefusesAdmin(t *testing.T) {
	_, err := token.PassPNG("admin-1", ledger.RoleAdmin, token.DefaultPassSize)
	assert.ErrorIs(t, err, ledger.ErrMalformedToken)
}
