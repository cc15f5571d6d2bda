package services

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/require"
)

// Claves de cuenta públicas derivadas de la semilla de prueba estándar
// (BIP44/49/84), con sus primeras direcciones conocidas
const (
	testXpub = "xpub6BosfCnifzxcFwrSzQiqu2DBVTshkCXacvNsWGYJVVhhawA7d4R5WSWGFNbi8Aw6ZRc1brxMyWMzG3DSSSSoekkudhUd9yLb6qx39T9nMdj"
	testYpub = "ypub6Ww3ibxVfGzLrAH1PNcjyAWenMTbbAosGNB6VvmSEgytSER9azLDWCxoJwW7Ke7icmizBMXrzBx9979FfaHxHcrArf3zbeJJJUZPf663zsP"
	testZpub = "zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs"
)

func TestDeriveAddressesKnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		chain    AddressChain
		index    uint32
		expected string
	}{
		{
			name:     "xpub legacy recepción 0",
			key:      testXpub,
			chain:    ExternalChain,
			index:    0,
			expected: "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA",
		},
		{
			name:     "ypub nested recepción 0",
			key:      testYpub,
			chain:    ExternalChain,
			index:    0,
			expected: "37VucYSaXLCAsxYyAPfbSi9eh4iEcbShgf",
		},
		{
			name:     "zpub segwit recepción 0",
			key:      testZpub,
			chain:    ExternalChain,
			index:    0,
			expected: "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu",
		},
		{
			name:     "zpub segwit recepción 1",
			key:      testZpub,
			chain:    ExternalChain,
			index:    1,
			expected: "bc1qnjg0jd8228aq7egyzacy8cys3knf9xvrerkf9g",
		},
		{
			name:     "zpub segwit cambio 0",
			key:      testZpub,
			chain:    InternalChain,
			index:    0,
			expected: "bc1q8c6fshw2dlwun7ekn9qwf37cu2rn755upcp6el",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			addrs, err := DeriveAddresses(tc.key, 1, tc.index, tc.chain)
			require.NoError(t, err)
			require.Len(t, addrs, 1)
			require.Equal(t, tc.expected, addrs[0].Address)
			require.Equal(t, tc.chain, addrs[0].Chain)
			require.Equal(t, tc.index, addrs[0].Index)
		})
	}
}

func TestDeriveAddressesDeterministic(t *testing.T) {
	first, err := DeriveAddresses(testZpub, 10, 0, ExternalChain)
	require.NoError(t, err)

	second, err := DeriveAddresses(testZpub, 10, 0, ExternalChain)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestDeriveAddressesStartIndexContinuity(t *testing.T) {
	// Derivar en dos tandas tiene que dar lo mismo que derivar de una
	full, err := DeriveAddresses(testZpub, 6, 0, ExternalChain)
	require.NoError(t, err)

	tail, err := DeriveAddresses(testZpub, 4, 2, ExternalChain)
	require.NoError(t, err)

	require.Equal(t, full[2:], tail)
}

func TestDeriveAddressesTestnet(t *testing.T) {
	// Clonar la clave de prueba con los bytes de versión de vpub para
	// obtener una clave testnet válida
	key, err := hdkeychain.NewKeyFromString(testZpub)
	require.NoError(t, err)

	vpubKey, err := key.CloneWithVersion([]byte{0x04, 0x5f, 0x1c, 0xf6})
	require.NoError(t, err)
	vpub := vpubKey.String()
	require.True(t, strings.HasPrefix(vpub, "vpub"))

	addrs, err := DeriveAddresses(vpub, 3, 0, ExternalChain)
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	for _, addr := range addrs {
		require.True(t, strings.HasPrefix(addr.Address, "tb1"), addr.Address)
	}
}

func TestDeriveAddressesInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"prefijo desconocido", "apub6BosfCnifzxcFwrSzQiqu2DBVTshkCXacvNsWGYJVVhhawA"},
		{"clave demasiado corta", "xp"},
		{"base58 corrupto", "xpub000000000000000000000000000000000000000000000000"},
		{"dirección común", "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveAddresses(tc.key, 1, 0, ExternalChain)
			require.ErrorIs(t, err, ErrInvalidKeyFormat)
		})
	}
}

func TestIsExtendedKey(t *testing.T) {
	require.True(t, IsExtendedKey(testXpub))
	require.True(t, IsExtendedKey(testYpub))
	require.True(t, IsExtendedKey(testZpub))
	require.False(t, IsExtendedKey("bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"))
	require.False(t, IsExtendedKey("1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"))
	require.False(t, IsExtendedKey(""))
}
