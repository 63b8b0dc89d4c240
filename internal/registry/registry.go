// Package registry holds the externally configured verifier panels, forfeiture
// addresses and escrow policy. A Registry is immutable once constructed.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/templui/bullseye/internal/model"
)

const (
	DefaultDecimals             int32 = 9
	DefaultVerificationWindow         = 24 * time.Hour
	DefaultMaxOpenGoalsPerOwner       = 1
)

var ErrInvalidRegistry = errors.New("invalid registry")

// Policy holds the escrow constants. Amounts are in the smallest unit.
type Policy struct {
	MinLock              int64         `json:"min_lock"`
	MaxLock              int64         `json:"max_lock"`
	Decimals             int32         `json:"decimals"`
	VerificationWindow   time.Duration `json:"verification_window"`
	MaxOpenGoalsPerOwner int           `json:"max_open_goals_per_owner"`
}

// Panel is the verifier set configured for one verification type. For
// single-verifier goals it is the pool a goal picks its one verifier from.
type Panel struct {
	RequiredVotes int      `json:"required_votes"`
	Verifiers     []string `json:"verifiers"`
}

type Registry struct {
	burnAddress     string
	treasuryAddress string
	policy          Policy
	panels          map[model.VerificationType]Panel
}

// New validates its inputs and returns a registry holding private copies of them.
func New(burnAddress, treasuryAddress string, policy Policy, panels map[model.VerificationType]Panel) (*Registry, error) {
	r := &Registry{
		burnAddress:     strings.TrimSpace(burnAddress),
		treasuryAddress: strings.TrimSpace(treasuryAddress),
		policy:          policy,
		panels:          make(map[model.VerificationType]Panel, len(panels)),
	}
	for vt, p := range panels {
		r.panels[vt] = Panel{RequiredVotes: p.RequiredVotes, Verifiers: normalizeIdentities(p.Verifiers)}
	}

	if r.policy.Decimals == 0 {
		r.policy.Decimals = DefaultDecimals
	}
	if r.policy.VerificationWindow == 0 {
		r.policy.VerificationWindow = DefaultVerificationWindow
	}
	if r.policy.MaxOpenGoalsPerOwner == 0 {
		r.policy.MaxOpenGoalsPerOwner = DefaultMaxOpenGoalsPerOwner
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	return r, nil
}

func (r *Registry) validate() error {
	if r.burnAddress == "" {
		return fmt.Errorf("burn_address is required")
	}
	if r.treasuryAddress == "" {
		return fmt.Errorf("treasury_address is required")
	}
	if r.burnAddress == r.treasuryAddress {
		return fmt.Errorf("burn_address and treasury_address must differ")
	}

	p := r.policy
	if p.MinLock <= 0 {
		return fmt.Errorf("policy.min_lock must be positive")
	}
	if p.MaxLock < p.MinLock {
		return fmt.Errorf("policy.max_lock must be >= policy.min_lock")
	}
	if p.Decimals < 0 || p.Decimals > 18 {
		return fmt.Errorf("policy.decimals out of range: %d", p.Decimals)
	}
	if p.VerificationWindow < 0 {
		return fmt.Errorf("policy.verification_window must be positive")
	}
	if p.MaxOpenGoalsPerOwner < 0 {
		return fmt.Errorf("policy.max_open_goals_per_owner must be positive")
	}

	for _, vt := range []model.VerificationType{model.VerificationCommunityPanel, model.VerificationSingleVerifier} {
		panel, ok := r.panels[vt]
		if !ok {
			return fmt.Errorf("panel %q is required", vt)
		}
		if len(panel.Verifiers) == 0 {
			return fmt.Errorf("panel %q has no verifiers", vt)
		}
		seen := make(map[string]bool, len(panel.Verifiers))
		for _, v := range panel.Verifiers {
			if seen[v] {
				return fmt.Errorf("panel %q lists verifier %q twice", vt, v)
			}
			seen[v] = true
		}
	}

	community := r.panels[model.VerificationCommunityPanel]
	if community.RequiredVotes < 1 || community.RequiredVotes > len(community.Verifiers) {
		return fmt.Errorf("panel %q required_votes must be between 1 and %d", model.VerificationCommunityPanel, len(community.Verifiers))
	}
	// A single-verifier goal is judged by exactly one identity.
	if single := r.panels[model.VerificationSingleVerifier]; single.RequiredVotes != 1 {
		return fmt.Errorf("panel %q required_votes must be 1", model.VerificationSingleVerifier)
	}

	for vt := range r.panels {
		if !vt.Valid() {
			return fmt.Errorf("unknown panel %q", vt)
		}
	}
	return nil
}

func (r *Registry) BurnAddress() string {
	return r.burnAddress
}

func (r *Registry) TreasuryAddress() string {
	return r.treasuryAddress
}

func (r *Registry) Policy() Policy {
	return r.policy
}

// Panel returns a copy of the panel configured for vt.
func (r *Registry) Panel(vt model.VerificationType) (Panel, bool) {
	p, ok := r.panels[vt]
	if !ok {
		return Panel{}, false
	}
	return Panel{RequiredVotes: p.RequiredVotes, Verifiers: slices.Clone(p.Verifiers)}, true
}

// RequiredVotes returns the threshold fixed for vt.
func (r *Registry) RequiredVotes(vt model.VerificationType) (int, bool) {
	p, ok := r.panels[vt]
	return p.RequiredVotes, ok
}

// AssignPanel resolves the verifier set a new goal of type vt is judged by.
// Single-verifier goals must name a member of the single-verifier pool.
func (r *Registry) AssignPanel(vt model.VerificationType, chosen string) ([]string, error) {
	p, ok := r.panels[vt]
	if !ok {
		return nil, fmt.Errorf("unknown verification type %q", vt)
	}
	if vt == model.VerificationCommunityPanel {
		return slices.Clone(p.Verifiers), nil
	}
	chosen = strings.TrimSpace(chosen)
	if chosen == "" {
		return nil, fmt.Errorf("single verifier goals must name a verifier")
	}
	if !slices.Contains(p.Verifiers, chosen) {
		return nil, fmt.Errorf("verifier %q is not registered for %s goals", chosen, vt)
	}
	return []string{chosen}, nil
}

// IsVerifier reports whether identity appears on any configured panel.
func (r *Registry) IsVerifier(identity string) bool {
	for _, p := range r.panels {
		if slices.Contains(p.Verifiers, identity) {
			return true
		}
	}
	return false
}

// FormatAmount renders a smallest-unit amount in whole units.
func (r *Registry) FormatAmount(amount int64) string {
	return decimal.New(amount, -r.policy.Decimals).String()
}

// ParseAmount converts a decimal string in whole units to the smallest unit.
func ParseAmount(raw string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	units := d.Shift(decimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", raw, decimals)
	}
	return units.IntPart(), nil
}

func normalizeIdentities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

type fileRegistry struct {
	BurnAddress     string               `toml:"burn_address"`
	TreasuryAddress string               `toml:"treasury_address"`
	Policy          filePolicy           `toml:"policy"`
	Panels          map[string]filePanel `toml:"panels"`
}

type filePolicy struct {
	MinLock              string `toml:"min_lock"`
	MaxLock              string `toml:"max_lock"`
	Decimals             int32  `toml:"decimals"`
	VerificationWindow   string `toml:"verification_window"`
	MaxOpenGoalsPerOwner int    `toml:"max_open_goals_per_owner"`
}

type filePanel struct {
	RequiredVotes int      `toml:"required_votes"`
	Verifiers     []string `toml:"verifiers"`
}

// Load reads a registry TOML file.
func Load(path string) (*Registry, error) {
	var raw fileRegistry
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load registry (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidRegistry, path, undecoded)
	}

	policy := Policy{
		Decimals:             DefaultDecimals,
		VerificationWindow:   DefaultVerificationWindow,
		MaxOpenGoalsPerOwner: DefaultMaxOpenGoalsPerOwner,
	}
	if meta.IsDefined("policy", "decimals") {
		policy.Decimals = raw.Policy.Decimals
	}
	if meta.IsDefined("policy", "verification_window") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Policy.VerificationWindow))
		if err != nil {
			return nil, fmt.Errorf("parse policy.verification_window: %w", err)
		}
		policy.VerificationWindow = d
	}
	if meta.IsDefined("policy", "max_open_goals_per_owner") {
		policy.MaxOpenGoalsPerOwner = raw.Policy.MaxOpenGoalsPerOwner
	}
	if !meta.IsDefined("policy", "min_lock") || !meta.IsDefined("policy", "max_lock") {
		return nil, fmt.Errorf("%w: policy.min_lock and policy.max_lock are required", ErrInvalidRegistry)
	}
	if policy.MinLock, err = ParseAmount(raw.Policy.MinLock, policy.Decimals); err != nil {
		return nil, fmt.Errorf("parse policy.min_lock: %w", err)
	}
	if policy.MaxLock, err = ParseAmount(raw.Policy.MaxLock, policy.Decimals); err != nil {
		return nil, fmt.Errorf("parse policy.max_lock: %w", err)
	}

	panels := make(map[model.VerificationType]Panel, len(raw.Panels))
	for name, p := range raw.Panels {
		panels[model.VerificationType(name)] = Panel{RequiredVotes: p.RequiredVotes, Verifiers: p.Verifiers}
	}

	return New(raw.BurnAddress, raw.TreasuryAddress, policy, panels)
}
