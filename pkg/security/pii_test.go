package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPIICipherRoundTrip(t *testing.T) {
	c, err := NewPIICipher("unit-test-secret")
	require.NoError(t, err)

	blob, err := c.Encrypt("1094820133")
	require.NoError(t, err)
	require.NotEmpty(t, blob)
	require.NotContains(t, blob, "1094820133")

	require.Equal(t, "1094820133", c.Decrypt(blob))
}

func TestPIICipherNonceVariesPerCall(t *testing.T) {
	c, err := NewPIICipher("unit-test-secret")
	require.NoError(t, err)

	first, err := c.Encrypt("same-value")
	require.NoError(t, err)
	second, err := c.Encrypt("same-value")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestPIICipherDecryptDegradesToEmpty(t *testing.T) {
	c, err := NewPIICipher("unit-test-secret")
	require.NoError(t, err)

	require.Empty(t, c.Decrypt("not base64 at all!!"))
	require.Empty(t, c.Decrypt("YWJj")) // valid base64, too short for a nonce

	blob, err := c.Encrypt("1094820133")
	require.NoError(t, err)

	other, err := NewPIICipher("a-different-secret")
	require.NoError(t, err)
	require.Empty(t, other.Decrypt(blob))
}

func TestNewPIICipherRequiresSecret(t *testing.T) {
	_, err := NewPIICipher("   ")
	require.Error(t, err)
}

func TestMaskIDNumber(t *testing.T) {
	require.Equal(t, "***0133", MaskIDNumber("1094820133"))
	require.Equal(t, "***987", MaskIDNumber("987"))
	require.Empty(t, MaskIDNumber("  "))

	require.True(t, IsMasked("***0133"))
	require.False(t, IsMasked("1094820133"))
}
