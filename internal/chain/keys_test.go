package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeypair(t *testing.T) {
	pair, err := GenerateKeypair()
	require.NoError(t, err)
	require.True(t, ValidAddress(pair.Address))
	require.Len(t, pair.PrivateKey, 64)

	key, err := ParsePrivateKey(pair.PrivateKey)
	require.NoError(t, err)
	require.NotNil(t, key)
}

func TestGenerateKeypairIsUnique(t *testing.T) {
	first, err := GenerateKeypair()
	require.NoError(t, err)
	second, err := GenerateKeypair()
	require.NoError(t, err)
	require.NotEqual(t, first.Address, second.Address)
}

func TestParsePrivateKeyToleratesPrefix(t *testing.T) {
	pair, err := GenerateKeypair()
	require.NoError(t, err)

	key, err := ParsePrivateKey("0x" + pair.PrivateKey)
	require.NoError(t, err)
	require.NotNil(t, key)

	_, err = ParsePrivateKey("not-a-key")
	require.Error(t, err)
}

func TestValidAddress(t *testing.T) {
	require.True(t, ValidAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	require.False(t, ValidAddress("52908400098527886E0F7030069857D2E4169EE"))
	require.False(t, ValidAddress("hello"))
}
