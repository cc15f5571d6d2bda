package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ErrInvalidKeyFormat indica una clave extendida con prefijo desconocido o
// que no se pudo decodificar
var ErrInvalidKeyFormat = errors.New("formato de clave extendida inválido")

// AddressChain es la rama de derivación BIP32: externa (recepción) o
// interna (cambio)
type AddressChain uint32

const (
	ExternalChain AddressChain = 0
	InternalChain AddressChain = 1
)

// DerivedAddress es una dirección derivada de la clave extendida, con su
// rama e índice de derivación
type DerivedAddress struct {
	Address string
	Chain   AddressChain
	Index   uint32
}

// Codificación de dirección que corresponde a cada prefijo de clave
type addressEncoding int

const (
	encodingLegacy addressEncoding = iota // P2PKH
	encodingNested                        // P2SH-P2WPKH
	encodingSegwit                        // P2WPKH nativo
)

type keyFormat struct {
	params   *chaincfg.Params
	encoding addressEncoding
}

// Prefijos soportados: x/y/z para mainnet, t/u/v para testnet
var keyFormats = map[string]keyFormat{
	"xpub": {&chaincfg.MainNetParams, encodingLegacy},
	"ypub": {&chaincfg.MainNetParams, encodingNested},
	"zpub": {&chaincfg.MainNetParams, encodingSegwit},
	"tpub": {&chaincfg.TestNet3Params, encodingLegacy},
	"upub": {&chaincfg.TestNet3Params, encodingNested},
	"vpub": {&chaincfg.TestNet3Params, encodingSegwit},
}

// IsExtendedKey indica si el valor tiene prefijo de clave pública extendida.
// Cualquier otro valor se trata como una dirección individual.
func IsExtendedKey(key string) bool {
	if len(key) < 4 {
		return false
	}
	_, ok := keyFormats[strings.ToLower(key[:4])]
	return ok
}

// DeriveAddresses deriva count direcciones a partir de startIndex sobre la
// rama indicada. Es una función pura: la misma clave, rama e índices
// producen siempre las mismas direcciones (derivación BIP32 estándar).
func DeriveAddresses(extendedKey string, count, startIndex uint32, chain AddressChain) ([]DerivedAddress, error) {
	if len(extendedKey) < 4 {
		return nil, fmt.Errorf("%w: clave demasiado corta", ErrInvalidKeyFormat)
	}

	format, ok := keyFormats[strings.ToLower(extendedKey[:4])]
	if !ok {
		return nil, fmt.Errorf("%w: prefijo %q no reconocido", ErrInvalidKeyFormat, extendedKey[:4])
	}

	accountKey, err := hdkeychain.NewKeyFromString(extendedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if accountKey.IsPrivate() {
		return nil, fmt.Errorf("%w: se esperaba una clave pública, no privada", ErrInvalidKeyFormat)
	}

	branchKey, err := accountKey.Derive(uint32(chain))
	if err != nil {
		return nil, fmt.Errorf("error derivando la rama %d: %w", chain, err)
	}

	addresses := make([]DerivedAddress, 0, count)
	for index := startIndex; index < startIndex+count; index++ {
		childKey, err := branchKey.Derive(index)
		if err == hdkeychain.ErrInvalidChild {
			// Índice inválido según BIP32: se saltea, igual que hace el
			// recovery de btcwallet
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error derivando el índice %d: %w", index, err)
		}

		addr, err := encodeAddress(childKey, format)
		if err != nil {
			return nil, err
		}

		addresses = append(addresses, DerivedAddress{
			Address: addr,
			Chain:   chain,
			Index:   index,
		})
	}

	return addresses, nil
}

// encodeAddress codifica la clave hija según el formato que implica el
// prefijo de la clave extendida
func encodeAddress(childKey *hdkeychain.ExtendedKey, format keyFormat) (string, error) {
	pubKey, err := childKey.ECPubKey()
	if err != nil {
		return "", err
	}
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch format.encoding {
	case encodingLegacy:
		addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, format.params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil

	case encodingSegwit:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, format.params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil

	case encodingNested:
		witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, format.params)
		if err != nil {
			return "", err
		}
		witnessProgram, err := txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return "", err
		}
		addr, err := btcutil.NewAddressScriptHashFromHash(
			btcutil.Hash160(witnessProgram), format.params,
		)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil

	default:
		return "", fmt.Errorf("codificación de dirección desconocida: %d", format.encoding)
	}
}
