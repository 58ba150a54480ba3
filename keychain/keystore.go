// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keychain

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/ledgerpay/paywallet/ledger"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	// Register the bolt backed walletdb driver.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	// KeyStoreDBName is the file name of the key store database.
	KeyStoreDBName = "keystore.db"

	dbDriver      = "bdb"
	dbOpenTimeout = 10 * time.Second

	saltLen  = 32
	nonceLen = 24
	keyLen   = 32
)

var (
	// ErrWrongPassphrase is returned when the key store cannot be
	// unlocked with the given passphrase.
	ErrWrongPassphrase = errors.New("wrong key store passphrase")

	// ErrCorruptKeyStore is returned when stored data cannot be decoded.
	ErrCorruptKeyStore = errors.New("corrupt key store")

	// ErrEmptyPassphrase is returned when creating a key store without a
	// passphrase.
	ErrEmptyPassphrase = errors.New("empty key store passphrase")
)

var (
	metaBucketKey     = []byte("meta")
	addressBucketKey  = []byte("payaddrs")
	identityBucketKey = []byte("identities")
	roleBucketKey     = []byte("roles")

	saltKey   = []byte("salt")
	scryptKey = []byte("scrypt")
	checkKey  = []byte("check")

	checkPlaintext = []byte("paywallet keystore")
)

// ScryptOptions holds the scrypt parameters used to derive the key store
// encryption key from the passphrase.
type ScryptOptions struct {
	N, R, P int
}

var (
	// DefaultScryptOptions is the default set of scrypt parameters.
	DefaultScryptOptions = ScryptOptions{N: 262144, R: 8, P: 1}

	// FastScryptOptions are cheap parameters meant for tests.
	FastScryptOptions = ScryptOptions{N: 16, R: 8, P: 1}
)

// encode serializes the options as three big endian uint32s.
func (o ScryptOptions) encode() []byte {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(o.N))
	binary.BigEndian.PutUint32(b[4:8], uint32(o.R))
	binary.BigEndian.PutUint32(b[8:12], uint32(o.P))

	return b[:]
}

// decodeScryptOptions is the inverse of encode.
func decodeScryptOptions(b []byte) (ScryptOptions, error) {
	if len(b) != 12 {
		return ScryptOptions{}, fmt.Errorf("%w: scrypt params",
			ErrCorruptKeyStore)
	}

	return ScryptOptions{
		N: int(binary.BigEndian.Uint32(b[0:4])),
		R: int(binary.BigEndian.Uint32(b[4:8])),
		P: int(binary.BigEndian.Uint32(b[8:12])),
	}, nil
}

// KeyStore is a Signer backed by an encrypted walletdb database. Payment
// address keys and identity keys are secp256k1 keys, encrypted at rest with
// a key derived from the passphrase.
type KeyStore struct {
	db  walletdb.DB
	key [keyLen]byte
}

// A compile-time assertion to ensure KeyStore satisfies the Signer
// interface.
var _ Signer = (*KeyStore)(nil)

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// OpenKeyStore opens the key store in dir, creating it when it does not
// exist yet. New stores use opts for key derivation, existing ones use the
// parameters they were created with.
func OpenKeyStore(dir string, passphrase []byte,
	opts ScryptOptions) (*KeyStore, error) {

	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, KeyStoreDBName)

	var (
		db  walletdb.DB
		err error
	)
	if fileExists(dbPath) {
		db, err = walletdb.Open(dbDriver, dbPath, true, dbOpenTimeout,
			false)
	} else {
		log.Infof("Creating key store at %s", dbPath)
		db, err = walletdb.Create(dbDriver, dbPath, true,
			dbOpenTimeout, false)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open key store: %w", err)
	}

	ks := &KeyStore{db: db}
	if err := ks.unlock(passphrase, opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return ks, nil
}

// unlock derives the encryption key, initializing the store on first use.
func (k *KeyStore) unlock(passphrase []byte, opts ScryptOptions) error {
	return walletdb.Update(k.db, func(tx walletdb.ReadWriteTx) error {
		meta, err := tx.CreateTopLevelBucket(metaBucketKey)
		if err != nil {
			return err
		}

		for _, b := range [][]byte{
			addressBucketKey, identityBucketKey, roleBucketKey,
		} {
			if _, err := tx.CreateTopLevelBucket(b); err != nil {
				return err
			}
		}

		salt := meta.Get(saltKey)
		if salt == nil {
			return k.initMeta(meta, passphrase, opts)
		}

		stored, err := decodeScryptOptions(meta.Get(scryptKey))
		if err != nil {
			return err
		}

		if err := k.deriveKey(passphrase, salt, stored); err != nil {
			return err
		}

		if _, err := k.decrypt(meta.Get(checkKey)); err != nil {
			return ErrWrongPassphrase
		}

		return nil
	})
}

// initMeta writes the salt, scrypt parameters and passphrase check value of
// a new store.
func (k *KeyStore) initMeta(meta walletdb.ReadWriteBucket, passphrase []byte,
	opts ScryptOptions) error {

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}

	if err := k.deriveKey(passphrase, salt, opts); err != nil {
		return err
	}

	check, err := k.encrypt(checkPlaintext)
	if err != nil {
		return err
	}

	if err := meta.Put(saltKey, salt); err != nil {
		return err
	}
	if err := meta.Put(scryptKey, opts.encode()); err != nil {
		return err
	}

	return meta.Put(checkKey, check)
}

// deriveKey runs scrypt over the passphrase.
func (k *KeyStore) deriveKey(passphrase, salt []byte,
	opts ScryptOptions) error {

	key, err := scrypt.Key(passphrase, salt, opts.N, opts.R, opts.P,
		keyLen)
	if err != nil {
		return fmt.Errorf("unable to derive key: %w", err)
	}
	copy(k.key[:], key)

	return nil
}

// encrypt seals plaintext with a random nonce prepended.
func (k *KeyStore) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.key), nil
}

// decrypt opens a value sealed by encrypt.
func (k *KeyStore) decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceLen+secretbox.Overhead {
		return nil, ErrCorruptKeyStore
	}

	var nonce [nonceLen]byte
	copy(nonce[:], sealed[:nonceLen])

	plaintext, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, &k.key)
	if !ok {
		return nil, ErrCorruptKeyStore
	}

	return plaintext, nil
}

// Close closes the underlying database.
func (k *KeyStore) Close() error {
	return k.db.Close()
}

// keyFromSeed derives a private key from a seed, or a random one when no
// seed is given.
func keyFromSeed(seed fn.Option[string]) (*btcec.PrivateKey, error) {
	if seed.IsSome() {
		priv, _ := btcec.PrivKeyFromBytes(
			chainhash.HashB([]byte(seed.UnwrapOr(""))),
		)

		return priv, nil
	}

	return btcec.NewPrivateKey()
}

// addressFromKey builds the payment address of pub for method.
func addressFromKey(method string, pub *btcec.PublicKey) string {
	return ledger.MethodPrefix(method) + ":" +
		base58.Encode(pub.SerializeCompressed())
}

// pubKeyFromAddress recovers the public key encoded in a payment address.
func pubKeyFromAddress(address string) (*btcec.PublicKey, error) {
	_, id, err := ParsePaymentAddress(address)
	if err != nil {
		return nil, err
	}

	pub, err := btcec.ParsePubKey(base58.Decode(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return pub, nil
}

// putKey encrypts and stores priv under name in bucket.
func (k *KeyStore) putKey(bucket walletdb.ReadWriteBucket, name []byte,
	priv *btcec.PrivateKey) error {

	sealed, err := k.encrypt(priv.Serialize())
	if err != nil {
		return err
	}

	return bucket.Put(name, sealed)
}

// fetchKey loads and decrypts the key stored under name in bucketKey.
func (k *KeyStore) fetchKey(bucketKey, name []byte,
	notFound error) (*btcec.PrivateKey, error) {

	var priv *btcec.PrivateKey
	err := walletdb.View(k.db, func(tx walletdb.ReadTx) error {
		sealed := tx.ReadBucket(bucketKey).Get(name)
		if sealed == nil {
			return fmt.Errorf("%w: %s", notFound, name)
		}

		raw, err := k.decrypt(sealed)
		if err != nil {
			return err
		}

		priv, _ = btcec.PrivKeyFromBytes(raw)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return priv, nil
}

// CreatePaymentAddress creates and stores a payment address key.
func (k *KeyStore) CreatePaymentAddress(_ context.Context, method string,
	seed fn.Option[string]) (string, error) {

	priv, err := keyFromSeed(seed)
	if err != nil {
		return "", err
	}

	address := addressFromKey(method, priv.PubKey())

	err = walletdb.Update(k.db, func(tx walletdb.ReadWriteTx) error {
		return k.putKey(
			tx.ReadWriteBucket(addressBucketKey), []byte(address),
			priv,
		)
	})
	if err != nil {
		return "", err
	}

	log.Debugf("Created payment address %s", address)

	return address, nil
}

// ListPaymentAddresses returns the stored payment addresses in key order.
func (k *KeyStore) ListPaymentAddresses(_ context.Context) ([]string, error) {
	var addrs []string
	err := walletdb.View(k.db, func(tx walletdb.ReadTx) error {
		return tx.ReadBucket(addressBucketKey).ForEach(
			func(key, _ []byte) error {
				addrs = append(addrs, string(key))
				return nil
			},
		)
	})
	if err != nil {
		return nil, err
	}

	return addrs, nil
}

// SignWithAddress returns a DER encoded ECDSA signature of the double
// SHA-256 of msg.
func (k *KeyStore) SignWithAddress(_ context.Context, address string,
	msg []byte) ([]byte, error) {

	priv, err := k.fetchKey(addressBucketKey, []byte(address),
		ErrUnknownAddress)
	if err != nil {
		return nil, err
	}

	return ecdsa.Sign(priv, chainhash.DoubleHashB(msg)).Serialize(), nil
}

// VerifyWithAddress checks a signature produced by SignWithAddress. The key
// is recovered from the address itself, so any address can be verified.
func (k *KeyStore) VerifyWithAddress(_ context.Context, address string, msg,
	sig []byte) (bool, error) {

	pub, err := pubKeyFromAddress(address)
	if err != nil {
		return false, err
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		log.Debugf("Malformed signature for %s: %v", address, err)
		return false, nil
	}

	return parsed.Verify(chainhash.DoubleHashB(msg), pub), nil
}

// ImportIdentity stores the signing key derived from seed for identity,
// along with its ledger role.
func (k *KeyStore) ImportIdentity(_ context.Context, identity, seed string,
	role fn.Option[string]) error {

	priv, _ := btcec.PrivKeyFromBytes(chainhash.HashB([]byte(seed)))

	return walletdb.Update(k.db, func(tx walletdb.ReadWriteTx) error {
		err := k.putKey(
			tx.ReadWriteBucket(identityBucketKey), []byte(identity),
			priv,
		)
		if err != nil {
			return err
		}

		roles := tx.ReadWriteBucket(roleBucketKey)
		if role.IsNone() {
			return roles.Delete([]byte(identity))
		}

		return roles.Put([]byte(identity), []byte(role.UnwrapOr("")))
	})
}

// SignRequest signs a JSON request as identity. The signature covers the
// canonical encoding of the request without its signature field and is
// stored base58 encoded under "signature".
func (k *KeyStore) SignRequest(_ context.Context, identity,
	req string) (string, error) {

	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(req), &body); err != nil || body == nil {
		return "", fmt.Errorf("%w: not a JSON object", ErrInvalidRequest)
	}

	priv, err := k.fetchKey(identityBucketKey, []byte(identity),
		ErrUnknownIdentity)
	if err != nil {
		return "", err
	}

	delete(body, "signature")
	if _, ok := body["identifier"]; !ok {
		id, err := json.Marshal(identity)
		if err != nil {
			return "", err
		}
		body["identifier"] = id
	}

	// Map keys are encoded in sorted order.
	unsigned, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	sig := ecdsa.Sign(priv, chainhash.DoubleHashB(unsigned)).Serialize()
	encoded, err := json.Marshal(base58.Encode(sig))
	if err != nil {
		return "", err
	}
	body["signature"] = encoded

	signed, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	return string(signed), nil
}

// GetRole returns the role stored for identity.
func (k *KeyStore) GetRole(_ context.Context, identity string) (
	fn.Option[string], error) {

	role := fn.None[string]()
	err := walletdb.View(k.db, func(tx walletdb.ReadTx) error {
		if tx.ReadBucket(identityBucketKey).Get(
			[]byte(identity)) == nil {

			return fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
		}

		if r := tx.ReadBucket(roleBucketKey).Get(
			[]byte(identity)); r != nil {

			role = fn.Some(string(r))
		}

		return nil
	})
	if err != nil {
		return fn.None[string](), err
	}

	return role, nil
}
