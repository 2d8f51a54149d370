package memchain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudx-io/assetauction/core"
)

// Genesis is the initial state of an in-memory chain, loaded from JSON.
type Genesis struct {
	FeeRecipient       core.Address      `json:"fee_recipient"`
	FeeBps             uint32            `json:"fee_bps"`
	ApprovedCurrencies []core.Address    `json:"approved_currencies"`
	Balances           []GenesisBalance  `json:"balances"`
	Contracts          []GenesisContract `json:"contracts"`
}

type GenesisBalance struct {
	Account  core.Address `json:"account"`
	Currency core.Address `json:"currency"`
	Amount   core.Amount  `json:"amount"`
}

type GenesisContract struct {
	Address   core.Address   `json:"address"`
	Royalties bool           `json:"royalties"`
	Assets    []GenesisAsset `json:"assets"`
}

type GenesisAsset struct {
	ID         uint64       `json:"id"`
	Owner      core.Address `json:"owner"`
	Amount     uint64       `json:"amount"`
	Artist     core.Address `json:"artist"`
	RoyaltyBps uint32       `json:"royalty_bps"`
}

// Chain bundles the collaborators built from a Genesis.
type Chain struct {
	Registry  *Registry
	Bank      *Bank
	Contracts *Contracts
}

// LoadGenesis reads a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decoding genesis %s: %w", path, err)
	}
	return &g, nil
}

// Build creates a chain whose bank vault is the engine custody account.
func (g *Genesis) Build(vault core.Address) (*Chain, error) {
	reg, err := NewRegistry(g.FeeRecipient, g.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}
	for _, c := range g.ApprovedCurrencies {
		reg.Approve(c)
	}

	bank := NewBank(vault)
	for _, b := range g.Balances {
		if err := bank.Mint(b.Account, b.Currency, b.Amount); err != nil {
			return nil, fmt.Errorf("funding %s: %w", b.Account.Hex(), err)
		}
	}

	contracts := NewContracts()
	for _, gc := range g.Contracts {
		m := NewMultiToken(gc.Address, gc.Royalties)
		for _, a := range gc.Assets {
			if err := m.Issue(a.ID, a.Owner, a.Amount, a.Artist, a.RoyaltyBps); err != nil {
				return nil, fmt.Errorf("contract %s: %w", gc.Address.Hex(), err)
			}
		}
		contracts.Deploy(m)
	}

	return &Chain{Registry: reg, Bank: bank, Contracts: contracts}, nil
}
