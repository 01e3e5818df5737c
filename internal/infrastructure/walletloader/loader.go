package walletloader

import (
	"bufio"
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"fundchain/internal/app/port"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

const defaultKeyFilePath = "data/wallet.key"

// ErrNoKey is returned when the key file holds no usable key.
var ErrNoKey = errors.New("no private key found")

// KeyFileLoader reads the signing key of the local wallet agent. The file is either
// an encrypted keystore JSON document or a text file whose first non-comment line
// is a hex private key.
type KeyFileLoader struct {
	filePath      string
	passphraseEnv string
	logger        port.Logger
}

// NewKeyFileLoader creates a new KeyFileLoader.
func NewKeyFileLoader(filePath, passphraseEnv string, logger port.Logger) *KeyFileLoader {
	if filePath == "" {
		filePath = defaultKeyFilePath
	}
	return &KeyFileLoader{
		filePath:      filePath,
		passphraseEnv: passphraseEnv,
		logger:        logger,
	}
}

// Path returns the configured key file path.
func (l *KeyFileLoader) Path() string {
	return l.filePath
}

// Load reads and decodes the key. It is called on every pairing so a rotated file is picked up.
func (l *KeyFileLoader) Load() (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", l.filePath, err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return l.decryptKeystore(trimmed)
	}
	return l.parseHex(trimmed)
}

func (l *KeyFileLoader) decryptKeystore(data []byte) (*ecdsa.PrivateKey, error) {
	passphrase := ""
	if l.passphraseEnv != "" {
		passphrase = os.Getenv(l.passphraseEnv)
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", l.filePath, err)
	}
	l.logger.Debug("Keystore decrypted", "path", l.filePath, "address", key.Address.Hex())
	return key.PrivateKey, nil
}

func (l *KeyFileLoader) parseHex(data []byte) (*ecdsa.PrivateKey, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X"))
		if err != nil {
			// the key itself is never logged
			return nil, fmt.Errorf("invalid private key on line %d of %s: %w", lineNum, l.filePath, err)
		}
		l.logger.Debug("Hex key loaded", "path", l.filePath, "line_number", lineNum)
		return key, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning key file %s: %w", l.filePath, err)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoKey, l.filePath)
}
