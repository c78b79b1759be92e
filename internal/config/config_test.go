package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Network != "regtest" {
		t.Errorf("Network = %s, want regtest", cfg.Network)
	}
	if cfg.RekeyInterval != 224 {
		t.Errorf("RekeyInterval = %d, want 224", cfg.RekeyInterval)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 10s", cfg.HandshakeTimeout)
	}
	if cfg.MaxGarbageBytes != 4095 {
		t.Errorf("MaxGarbageBytes = %d, want 4095", cfg.MaxGarbageBytes)
	}
}

func TestParseValidConfig(t *testing.T) {
	yamlConfig := `
network: regtest
rekey_interval: 224
handshake_timeout: 30s
max_garbage_bytes: 100
`
	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HandshakeTimeout != 30*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 30s", cfg.HandshakeTimeout)
	}
	if cfg.MaxGarbageBytes != 100 {
		t.Errorf("MaxGarbageBytes = %d, want 100", cfg.MaxGarbageBytes)
	}
}

func TestParseUsesDefaultsForUnsetFields(t *testing.T) {
	cfg, err := Parse([]byte(`network: regtest`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.RekeyInterval != 224 {
		t.Errorf("RekeyInterval = %d, want default 224", cfg.RekeyInterval)
	}
}

func TestParseRejectsUnknownNetwork(t *testing.T) {
	if _, err := Parse([]byte(`network: mainnet`)); err == nil {
		t.Fatal("expected error for unknown network")
	}
}

func TestParseRejectsInvalidRekeyInterval(t *testing.T) {
	if _, err := Parse([]byte("network: regtest\nrekey_interval: 0\n")); err == nil {
		t.Fatal("expected error for non-positive rekey_interval")
	}
}

func TestParseRejectsOversizedGarbageBound(t *testing.T) {
	if _, err := Parse([]byte("network: regtest\nmax_garbage_bytes: 5000\n")); err == nil {
		t.Fatal("expected error for max_garbage_bytes above 4095")
	}
}

func TestNetworkMagicRegtest(t *testing.T) {
	magic, ok := NetworkMagic("regtest")
	if !ok {
		t.Fatal("expected regtest magic to be defined")
	}
	want := [4]byte{0xfa, 0xbf, 0xb5, 0xda}
	if magic != want {
		t.Errorf("regtest magic = %x, want %x", magic, want)
	}
}

func TestNetworkMagicUnknown(t *testing.T) {
	if _, ok := NetworkMagic("mainnet"); ok {
		t.Fatal("mainnet should not be populated in this core")
	}
}
