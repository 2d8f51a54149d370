package memchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudx-io/assetauction/core"
)

// ERC1155Received is the answer a receiver must give to accept a safe
// transfer.
var ERC1155Received = [4]byte{0xf2, 0x3a, 0x6e, 0x61}

var (
	ErrInsufficientAssets = errors.New("insufficient asset balance")
	ErrTransferRejected   = errors.New("receiver rejected transfer")
	ErrUnknownContract    = errors.New("unknown asset contract")
)

// AssetReceiver is called when a registered account receives an asset.
type AssetReceiver interface {
	OnAssetReceived(ctx context.Context, operator, from core.Address, assetID uint64, data []byte) ([4]byte, error)
}

type creator struct {
	artist     core.Address
	royaltyBps uint32
}

type ownership struct {
	assetID uint64
	owner   core.Address
}

// MultiToken is a multi-token asset contract that pays creator royalties.
type MultiToken struct {
	address   core.Address
	royalties bool

	mu        sync.Mutex
	creators  map[uint64]creator
	balances  map[ownership]uint64
	receivers map[core.Address]AssetReceiver
}

// NewMultiToken returns an empty contract at address. royalties controls
// whether it claims support for the royalty standard.
func NewMultiToken(address core.Address, royalties bool) *MultiToken {
	return &MultiToken{
		address:   address,
		royalties: royalties,
		creators:  make(map[uint64]creator),
		balances:  make(map[ownership]uint64),
		receivers: make(map[core.Address]AssetReceiver),
	}
}

func (m *MultiToken) Address() core.Address {
	return m.address
}

// Issue mints amount units of assetID to owner and records its creator
// royalty. Issuing more of an existing asset keeps the first creator.
func (m *MultiToken) Issue(assetID uint64, owner core.Address, amount uint64, artist core.Address, royaltyBps uint32) error {
	if err := core.ValidateBasisPoints(royaltyBps); err != nil {
		return fmt.Errorf("issue asset %d: %w", assetID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creators[assetID]; !ok {
		m.creators[assetID] = creator{artist: artist, royaltyBps: royaltyBps}
	}
	m.balances[ownership{assetID, owner}] += amount
	return nil
}

// RegisterReceiver makes safe transfers to account call r.
func (m *MultiToken) RegisterReceiver(account core.Address, r AssetReceiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivers[account] = r
}

func (m *MultiToken) SupportsRoyaltyStandard(context.Context) (bool, error) {
	return m.royalties, nil
}

func (m *MultiToken) RoyaltyInfo(_ context.Context, assetID uint64, price core.Amount) (core.Address, core.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creators[assetID]
	if !ok {
		return core.Address{}, core.ZeroAmount, nil
	}
	return c.artist, core.ApplyBasisPoints(price, c.royaltyBps), nil
}

func (m *MultiToken) OwnedAmount(_ context.Context, owner core.Address, assetID uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[ownership{assetID, owner}], nil
}

// SafeTransferFrom moves one unit of assetID from from to to. operator is the
// account that initiated the transfer and is passed to the receiver. A
// registered receiver must answer with ERC1155Received or the transfer is
// reverted.
func (m *MultiToken) SafeTransferFrom(ctx context.Context, operator, from, to core.Address, assetID uint64, data []byte) error {
	m.mu.Lock()
	src := ownership{assetID, from}
	if m.balances[src] < 1 {
		m.mu.Unlock()
		return fmt.Errorf("%s holds no unit of asset %d: %w", from.Hex(), assetID, ErrInsufficientAssets)
	}
	m.balances[src]--
	m.balances[ownership{assetID, to}]++
	r := m.receivers[to]
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	answer, err := r.OnAssetReceived(ctx, operator, from, assetID, data)
	if err == nil && answer != ERC1155Received {
		err = ErrTransferRejected
	}
	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.balances[ownership{assetID, to}]--
		m.balances[src]++
		return fmt.Errorf("transfer of asset %d to %s: %w", assetID, to.Hex(), err)
	}
	return nil
}

// Contracts resolves asset contracts by address.
type Contracts struct {
	mu        sync.RWMutex
	contracts map[core.Address]*MultiToken
}

func NewContracts(contracts ...*MultiToken) *Contracts {
	c := &Contracts{contracts: make(map[core.Address]*MultiToken)}
	for _, m := range contracts {
		c.contracts[m.Address()] = m
	}
	return c
}

// Deploy adds m, replacing any contract at the same address.
func (c *Contracts) Deploy(m *MultiToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[m.Address()] = m
}

// Get returns the concrete contract at addr.
func (c *Contracts) Get(addr core.Address) (*MultiToken, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownContract)
	}
	return m, nil
}
