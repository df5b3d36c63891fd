package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration loaded from TOML.
type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	GatewayAddress string   `toml:"GatewayAddress"`
	DataDir        string   `toml:"DataDir"`
	Environment    string   `toml:"Environment"`
	CustodyAddress string   `toml:"CustodyAddress"`
	Admins         []string `toml:"Admins"`

	Collections []CollectionSeed `toml:"Collections"`
	Catalog     []EntrySeed      `toml:"Catalog"`
}

// CollectionSeed declares a staking collection registered at boot.
type CollectionSeed struct {
	ID               uint64  `toml:"ID"`
	Kind             string  `toml:"Kind"`
	Active           bool    `toml:"Active"`
	SlotID           uint64  `toml:"SlotID"`
	BaseRate         int64   `toml:"BaseRate"`
	PremiumBonuses   []int64 `toml:"PremiumBonuses"`
	SecondaryBonuses []int64 `toml:"SecondaryBonuses"`
	TraitRoot        string  `toml:"TraitRoot"`
}

// EntrySeed declares a vault catalog entry registered at boot.
type EntrySeed struct {
	ID       uint64   `toml:"ID"`
	Name     string   `toml:"Name"`
	Kind     string   `toml:"Kind"`
	SlotID   uint64   `toml:"SlotID"`
	Cost     int64    `toml:"Cost"`
	Hurdle   int64    `toml:"Hurdle"`
	Stock    uint64   `toml:"Stock"`
	ClaimCap uint64   `toml:"ClaimCap"`
	Pool     []uint64 `toml:"Pool"`
}

// Load reads the configuration at path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = "127.0.0.1:8646"
	}
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.CustodyAddress != "" {
		if _, err := ParseAddress(c.CustodyAddress); err != nil {
			return fmt.Errorf("config: invalid CustodyAddress: %w", err)
		}
	}
	for _, admin := range c.Admins {
		if _, err := ParseAddress(admin); err != nil {
			return fmt.Errorf("config: invalid admin address %q: %w", admin, err)
		}
	}
	seenCollections := make(map[uint64]bool)
	for _, seed := range c.Collections {
		if seenCollections[seed.ID] {
			return fmt.Errorf("config: duplicate collection %d", seed.ID)
		}
		seenCollections[seed.ID] = true
		if seed.BaseRate < 0 {
			return fmt.Errorf("config: collection %d has negative base rate", seed.ID)
		}
		switch seed.Kind {
		case "uniqueNFT", "pooledNFT", "fungible":
		default:
			return fmt.Errorf("config: collection %d has unknown kind %q", seed.ID, seed.Kind)
		}
		if seed.TraitRoot != "" {
			if _, err := ParseRoot(seed.TraitRoot); err != nil {
				return fmt.Errorf("config: collection %d trait root: %w", seed.ID, err)
			}
		}
	}
	seenEntries := make(map[uint64]bool)
	for _, seed := range c.Catalog {
		if seenEntries[seed.ID] {
			return fmt.Errorf("config: duplicate catalog entry %d", seed.ID)
		}
		seenEntries[seed.ID] = true
		if strings.TrimSpace(seed.Name) == "" {
			return fmt.Errorf("config: catalog entry %d has no name", seed.ID)
		}
		switch seed.Kind {
		case "physical", "poolNFT", "slotNFT", "fungible":
		default:
			return fmt.Errorf("config: catalog entry %d has unknown kind %q", seed.ID, seed.Kind)
		}
		if seed.Cost < 0 || seed.Hurdle < 0 {
			return fmt.Errorf("config: catalog entry %d has negative cost or hurdle", seed.ID)
		}
		for _, tokenID := range seed.Pool {
			if tokenID == 0 {
				return fmt.Errorf("config: catalog entry %d pools reserved identifier 0", seed.ID)
			}
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseAddress decodes a 20-byte hex address with optional 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// ParseRoot decodes a 32-byte hex hash with optional 0x prefix.
func ParseRoot(s string) ([32]byte, error) {
	var root [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return root, err
	}
	if len(raw) != len(root) {
		return root, fmt.Errorf("root must be 32 bytes, got %d", len(raw))
	}
	copy(root[:], raw)
	return root, nil
}
