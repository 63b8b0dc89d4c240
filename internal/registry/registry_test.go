package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/templui/bullseye/internal/model"
)

const sampleRegistry = `
burn_address = "burn-addr"
treasury_address = "treasury-addr"

[policy]
min_lock = "0.1"
max_lock = "10"
verification_window = "48h"

[panels.community_panel]
required_votes = 2
verifiers = ["v1", "v2", "v3"]

[panels.single_verifier]
required_votes = 1
verifiers = ["v1", "coach"]
`

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	reg, err := Load(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := reg.Policy()
	if p.MinLock != 100_000_000 {
		t.Errorf("MinLock = %d, want 100000000", p.MinLock)
	}
	if p.MaxLock != 10_000_000_000 {
		t.Errorf("MaxLock = %d, want 10000000000", p.MaxLock)
	}
	if p.Decimals != DefaultDecimals {
		t.Errorf("Decimals = %d, want default %d", p.Decimals, DefaultDecimals)
	}
	if p.VerificationWindow != 48*time.Hour {
		t.Errorf("VerificationWindow = %v, want 48h", p.VerificationWindow)
	}
	if p.MaxOpenGoalsPerOwner != 1 {
		t.Errorf("MaxOpenGoalsPerOwner = %d, want 1", p.MaxOpenGoalsPerOwner)
	}
	if reg.BurnAddress() != "burn-addr" || reg.TreasuryAddress() != "treasury-addr" {
		t.Errorf("addresses = %q/%q", reg.BurnAddress(), reg.TreasuryAddress())
	}
	if n, _ := reg.RequiredVotes(model.VerificationCommunityPanel); n != 2 {
		t.Errorf("community required = %d, want 2", n)
	}
	if !reg.IsVerifier("coach") || reg.IsVerifier("stranger") {
		t.Error("IsVerifier mismatch")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing burn address",
			body: `
treasury_address = "t"
[policy]
min_lock = "1"
max_lock = "2"
[panels.community_panel]
required_votes = 1
verifiers = ["a"]
[panels.single_verifier]
required_votes = 1
verifiers = ["a"]
`,
		},
		{
			name: "threshold above panel size",
			body: `
burn_address = "b"
treasury_address = "t"
[policy]
min_lock = "1"
max_lock = "2"
[panels.community_panel]
required_votes = 4
verifiers = ["a", "b", "c"]
[panels.single_verifier]
required_votes = 1
verifiers = ["a"]
`,
		},
		{
			name: "max below min",
			body: `
burn_address = "b"
treasury_address = "t"
[policy]
min_lock = "5"
max_lock = "2"
[panels.community_panel]
required_votes = 1
verifiers = ["a"]
[panels.single_verifier]
required_votes = 1
verifiers = ["a"]
`,
		},
		{
			name: "duplicate verifier",
			body: `
burn_address = "b"
treasury_address = "t"
[policy]
min_lock = "1"
max_lock = "2"
[panels.community_panel]
required_votes = 1
verifiers = ["a", "a"]
[panels.single_verifier]
required_votes = 1
verifiers = ["a"]
`,
		},
		{
			name: "unknown panel",
			body: `
burn_address = "b"
treasury_address = "t"
[policy]
min_lock = "1"
max_lock = "2"
[panels.community_panel]
required_votes = 1
verifiers = ["a"]
[panels.single_verifier]
required_votes = 1
verifiers = ["a"]
[panels.jury]
required_votes = 1
verifiers = ["a"]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRegistry(t, tt.body))
			if !errors.Is(err, ErrInvalidRegistry) {
				t.Fatalf("Load() error = %v, want ErrInvalidRegistry", err)
			}
		})
	}
}

func TestAssignPanel(t *testing.T) {
	reg, err := Load(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	panel, err := reg.AssignPanel(model.VerificationCommunityPanel, "")
	if err != nil || len(panel) != 3 {
		t.Fatalf("community panel = %v, %v", panel, err)
	}

	panel, err = reg.AssignPanel(model.VerificationSingleVerifier, "coach")
	if err != nil || len(panel) != 1 || panel[0] != "coach" {
		t.Fatalf("single panel = %v, %v", panel, err)
	}

	if _, err := reg.AssignPanel(model.VerificationSingleVerifier, "v2"); err == nil {
		t.Error("expected error for verifier outside the single pool")
	}
	if _, err := reg.AssignPanel(model.VerificationSingleVerifier, ""); err == nil {
		t.Error("expected error when no verifier is named")
	}

	// Returned panels are copies.
	panel, _ = reg.AssignPanel(model.VerificationCommunityPanel, "")
	panel[0] = "mutated"
	if p, _ := reg.Panel(model.VerificationCommunityPanel); p.Verifiers[0] == "mutated" {
		t.Error("registry panel was mutated through returned slice")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.1", 100_000_000, false},
		{"0.000000001", 1, false},
		{"0.0000000001", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw, 9)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	reg, err := Load(writeRegistry(t, sampleRegistry))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reg.FormatAmount(1_500_000_000); got != "1.5" {
		t.Errorf("FormatAmount() = %q, want 1.5", got)
	}
}
