package models

import (
	"fmt"
	"sort"
	"time"
)

// Frequency is the observed sampling cadence of a series.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyIrregular Frequency = "irregular"
)

// ResampleRule selects how raw observations collapse onto month ends.
type ResampleRule string

const (
	RuleFFill ResampleRule = "ffill"
	RuleMean  ResampleRule = "mean"
)

// ParseRule maps a config value to a rule. Empty returns "" so callers can
// fall back to Frequency.DefaultRule.
func ParseRule(s string) (ResampleRule, error) {
	switch ResampleRule(s) {
	case "", RuleFFill, RuleMean:
		return ResampleRule(s), nil
	default:
		return "", fmt.Errorf("unknown resample rule %q", s)
	}
}

// DefaultRule is the rule used when a series has none configured.
func (f Frequency) DefaultRule() ResampleRule {
	if f == FrequencyDaily {
		return RuleMean
	}
	return RuleFFill
}

// DetectFrequency classifies a sorted date index by its median gap.
func DetectFrequency(dates []time.Time) Frequency {
	if len(dates) < 2 {
		return FrequencyIrregular
	}
	gaps := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	sort.Float64s(gaps)
	var median float64
	if n := len(gaps); n%2 == 1 {
		median = gaps[n/2]
	} else {
		median = (gaps[n/2-1] + gaps[n/2]) / 2
	}
	switch {
	case median <= 4:
		return FrequencyDaily
	case median >= 27 && median <= 32:
		return FrequencyMonthly
	default:
		return FrequencyIrregular
	}
}
