package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"zblog/internal/ledger"
	"zblog/internal/metrics"
)

// DefaultDurationDays is the validity of a fresh signature
const DefaultDurationDays = 365

const keyPrefix = "zblog.decryption."

var (
	// ErrSignatureUnavailable means no valid signature could be produced.
	// Callers treat it as "decryption unavailable".
	ErrSignatureUnavailable = errors.New("decryption signature unavailable")

	// ErrNoContracts is returned when LoadOrSign is called with no addresses
	ErrNoContracts = errors.New("no contract addresses")
)

// KeyGenerator derives the ephemeral key pair a session is bound to
type KeyGenerator interface {
	GenerateKeypair() (ledger.Keypair, error)
}

// Config configures a Manager
type Config struct {
	NetworkPassphrase string
	DurationDays      int
}

// Manager builds, caches and validates decryption signatures
type Manager struct {
	keys    KeyGenerator
	storage Storage
	cfg     Config
	now     func() time.Time
	group   singleflight.Group
}

// NewManager creates a session manager
func NewManager(keys KeyGenerator, storage Storage, cfg Config) *Manager {
	if cfg.DurationDays <= 0 {
		cfg.DurationDays = DefaultDurationDays
	}
	return &Manager{
		keys:    keys,
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock overrides the manager's clock (tests)
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// LoadOrSign returns a signature valid now for every address in
// contractAddresses and the signer's account. A valid cached signature is
// returned without signing; otherwise a new one is created and persisted.
func (m *Manager) LoadOrSign(ctx context.Context, contractAddresses []string, signer Signer) (*DecryptionSignature, error) {
	if signer == nil {
		metrics.SignatureRequests.WithLabelValues("declined").Inc()
		return nil, fmt.Errorf("%w: no signer connected", ErrSignatureUnavailable)
	}

	addresses := normalizeAddresses(contractAddresses)
	if len(addresses) == 0 {
		return nil, ErrNoContracts
	}

	user := signer.Address()
	key := CacheKey(user, addresses)

	// the shared call must outlive any single waiter
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		if cached := m.load(shared, key, addresses, user); cached != nil {
			metrics.SignatureRequests.WithLabelValues("hit").Inc()
			return cached, nil
		}

		metrics.SignatureRequests.WithLabelValues("miss").Inc()
		return m.sign(shared, key, addresses, signer)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrSignatureUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	v := res.Val

	sig := *v.(*DecryptionSignature)
	return &sig, nil
}

// Forget removes the cached signature for the given user and addresses
func (m *Manager) Forget(ctx context.Context, user string, contractAddresses []string) error {
	return m.storage.RemoveItem(ctx, CacheKey(user, normalizeAddresses(contractAddresses)))
}

func (m *Manager) load(ctx context.Context, key string, addresses []string, user string) *DecryptionSignature {
	raw, ok, err := m.storage.GetItem(ctx, key)
	if err != nil {
		slog.Warn("Failed to read cached signature, signing a new one", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var sig DecryptionSignature
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		slog.Warn("Dropping undecodable cached signature", "key", key, "error", err)
		m.remove(ctx, key)
		return nil
	}

	if !sig.coversAll(addresses, user, m.now()) {
		slog.Debug("Cached signature no longer valid", "key", key, "expires_at", sig.ExpiresAt())
		m.remove(ctx, key)
		return nil
	}

	return &sig
}

func (m *Manager) sign(ctx context.Context, key string, addresses []string, signer Signer) (*DecryptionSignature, error) {
	kp, err := m.keys.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate keypair: %w", ErrSignatureUnavailable, err)
	}

	grant := ledger.DecryptionGrant{
		NetworkPassphrase: m.cfg.NetworkPassphrase,
		PublicKey:         kp.PublicKey,
		ContractAddresses: addresses,
		UserAddress:       signer.Address(),
		StartTimestamp:    m.now().Unix(),
		DurationDays:      m.cfg.DurationDays,
	}

	payload, err := grant.SigningPayload()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureUnavailable, err)
	}

	signature, err := signer.SignGrant(ctx, payload)
	if err != nil {
		metrics.SignatureRequests.WithLabelValues("declined").Inc()
		slog.Warn("Signer declined decryption grant", "user", grant.UserAddress, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSignatureUnavailable, err)
	}

	sig := &DecryptionSignature{
		PrivateKey:        kp.PrivateKey,
		PublicKey:         kp.PublicKey,
		Signature:         signature,
		ContractAddresses: addresses,
		UserAddress:       grant.UserAddress,
		StartTimestamp:    grant.StartTimestamp,
		DurationDays:      grant.DurationDays,
	}

	m.persist(ctx, key, sig)

	slog.Info("🔑 Decryption signature created",
		"user", sig.UserAddress,
		"contracts", len(addresses),
		"expires_at", sig.ExpiresAt().UTC().Format(time.RFC3339))
	return sig, nil
}

// persist is best effort: a signature that cannot be stored is still usable
func (m *Manager) persist(ctx context.Context, key string, sig *DecryptionSignature) {
	raw, err := json.Marshal(sig)
	if err != nil {
		slog.Error("Failed to encode signature", "key", key, "error", err)
		return
	}
	ttl := sig.ExpiresAt().Sub(m.now())
	if err := m.storage.SetItem(ctx, key, string(raw), ttl); err != nil {
		slog.Error("Failed to persist signature", "key", key, "error", err)
	}
}

func (m *Manager) remove(ctx context.Context, key string) {
	if err := m.storage.RemoveItem(ctx, key); err != nil {
		slog.Warn("Failed to remove cached signature", "key", key, "error", err)
	}
}

// CacheKey derives the storage key for a user and a set of contract addresses.
// Order and duplicates in addresses do not change the key.
func CacheKey(user string, addresses []string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(user))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(strings.Join(normalizeAddresses(addresses), ",")))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func normalizeAddresses(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
