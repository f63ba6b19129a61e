package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer("secret")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte(`{"phq9":21}`), []byte("session-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "phq9")

	plain, err := sealer.Open(sealed, []byte("session-1"))
	require.NoError(t, err)
	assert.Equal(t, `{"phq9":21}`, string(plain))
}

func TestSealerRejectsWrongBinding(t *testing.T) {
	sealer, err := NewSealer("secret")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("payload"), []byte("session-1"))
	require.NoError(t, err)

	_, err = sealer.Open(sealed, []byte("session-2"))
	require.Error(t, err)

	other, err := NewSealer("other")
	require.NoError(t, err)
	_, err = other.Open(sealed, []byte("session-1"))
	require.Error(t, err)
}

func TestSealerShortCiphertext(t *testing.T) {
	sealer, err := NewSealer("secret")
	require.NoError(t, err)
	_, err = sealer.Open([]byte("short"), nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestNewSealerRequiresSecret(t *testing.T) {
	_, err := NewSealer("")
	require.Error(t, err)
}
