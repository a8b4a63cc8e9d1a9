package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeNetworksFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write networks file: %v", err)
	}
	return path
}

func TestLoadNetworkConfig(t *testing.T) {
	path := writeNetworksFile(t, `
networks:
  - network: ERC20
    chain_id: 1
    native_symbol: ETH
    withdrawal_fee: "2"
    min_withdrawal: "10"
    required_confirmations: 12
    enabled: true
  - network: BSC20
    chain_id: 56
    native_symbol: BNB
    withdrawal_fee: "0.5"
    min_withdrawal: "5"
    required_confirmations: 15
    enabled: false
`)

	configs, err := LoadNetworkConfig(path)
	if err != nil {
		t.Fatalf("LoadNetworkConfig failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("Expected 2 networks, got %d", len(configs))
	}
	if configs[0].Network != "ERC20" || configs[0].ChainId != 1 {
		t.Errorf("Unexpected first network: %+v", configs[0])
	}
	if !configs[0].WithdrawalFee.Equal(decimal.RequireFromString("2")) {
		t.Errorf("Expected fee 2, got %s", configs[0].WithdrawalFee.String())
	}
	if configs[1].Enabled {
		t.Error("Expected BSC20 disabled")
	}
}

func TestLoadNetworkConfig_MissingName(t *testing.T) {
	path := writeNetworksFile(t, `
networks:
  - chain_id: 1
    withdrawal_fee: "2"
    min_withdrawal: "10"
`)
	if _, err := LoadNetworkConfig(path); err == nil {
		t.Fatal("Expected error for network without a name")
	}
}

func TestLoadNetworkConfig_BadFee(t *testing.T) {
	path := writeNetworksFile(t, `
networks:
  - network: ERC20
    withdrawal_fee: "lots"
    min_withdrawal: "10"
`)
	if _, err := LoadNetworkConfig(path); err == nil {
		t.Fatal("Expected error for unparseable fee")
	}
}

func TestLoadNetworkConfig_MissingFile(t *testing.T) {
	if _, err := LoadNetworkConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
