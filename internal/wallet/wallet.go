package wallet

import (
	"errors"
	"strings"
	"unicode"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vulpemventures/go-bip39"
)

var (
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrIndexOutOfRange ...
	ErrIndexOutOfRange = errors.New("derivation index out of non-hardened range")
)

// MasterAddressIndex is reserved for the custodial/master address;
// user allocations start at 1.
const MasterAddressIndex uint32 = 0

// baseDerivationPath is the BIP-44 account path m/44'/60'/0'/0 shared
// by all EVM-compatible chains (coin type 60).
var baseDerivationPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

// Wallet derives deterministic EVM deposit addresses from a master
// mnemonic. It holds only the extended key at the base path; derivation
// is pure and safe for unlimited concurrent use.
type Wallet struct {
	baseKey *hdkeychain.ExtendedKey
}

// NewMnemonic returns a fresh BIP-39 mnemonic with 128 bits of entropy.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NewFromMnemonic builds a wallet from a BIP-39 mnemonic phrase. The
// mnemonic is not retained; only the derived base key is kept.
func NewFromMnemonic(mnemonic string) (*Wallet, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	// IsMnemonicValid only checks word count and wordlist membership.
	// A wordlist-valid phrase with a bad checksum would silently derive
	// a different wallet, so the checksum must hold as well.
	if _, err := bip39.EntropyFromMnemonic(mnemonic); err != nil {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	for _, step := range baseDerivationPath {
		key, err = key.Derive(step)
		if err != nil {
			return nil, err
		}
	}

	return &Wallet{baseKey: key}, nil
}

// DeriveAddress returns the EIP-55 checksummed address at the given
// derivation index. The same index and mnemonic always yield the same
// address, across process restarts and hosts.
func (w *Wallet) DeriveAddress(index uint32) (string, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return "", ErrIndexOutOfRange
	}

	child, err := w.baseKey.Derive(index)
	if err != nil {
		return "", err
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return "", err
	}

	return ethcrypto.PubkeyToAddress(*pubKey.ToECDSA()).Hex(), nil
}

// MasterAddress returns the custodial address at the reserved index 0,
// holding funds belonging to the platform operator rather than any
// individual user.
func (w *Wallet) MasterAddress() (string, error) {
	return w.DeriveAddress(MasterAddressIndex)
}

// IsValidAddress reports whether candidate is a well-formed EVM
// address. Mixed-case input must carry a correct EIP-55 checksum;
// all-lowercase and all-uppercase hex are accepted as unchecksummed.
func IsValidAddress(candidate string) bool {
	if !strings.HasPrefix(candidate, "0x") {
		return false
	}
	if !ethcommon.IsHexAddress(candidate) {
		return false
	}

	hex := candidate[2:]
	var hasUpper, hasLower bool
	for _, r := range hex {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if hasUpper && hasLower {
		return candidate == ethcommon.HexToAddress(candidate).Hex()
	}
	return true
}
