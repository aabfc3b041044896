package cliparse

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/commission-negotiation/negotiation"
)

type policyFile struct {
	Negotiation struct {
		MinRate               *float64 `yaml:"min_rate"`
		MaxRate               *float64 `yaml:"max_rate"`
		MaxRounds             *int     `yaml:"max_rounds"`
		MinReasonLength       *int     `yaml:"min_reason_length"`
		MinRejectReasonLength *int     `yaml:"min_reject_reason_length"`
		RateScale             *int32   `yaml:"rate_scale"`
	} `yaml:"negotiation"`
}

// LoadPolicy starts from the default policy and applies any values set in
// the YAML file at path. An empty path returns the defaults.
func LoadPolicy(path string) (negotiation.Policy, error) {
	policy := negotiation.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return negotiation.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return negotiation.Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	n := f.Negotiation
	if n.MinRate != nil {
		policy.MinRate = decimal.NewFromFloat(*n.MinRate)
	}
	if n.MaxRate != nil {
		policy.MaxRate = decimal.NewFromFloat(*n.MaxRate)
	}
	if n.MaxRounds != nil {
		policy.MaxRounds = *n.MaxRounds
	}
	if n.MinReasonLength != nil {
		policy.MinReason = *n.MinReasonLength
	}
	if n.MinRejectReasonLength != nil {
		policy.MinRejectReason = *n.MinRejectReasonLength
	}
	if n.RateScale != nil {
		policy.Scale = *n.RateScale
	}

	if err := policy.Validate(); err != nil {
		return negotiation.Policy{}, fmt.Errorf("invalid policy in %s: %w", path, err)
	}
	return policy, nil
}
