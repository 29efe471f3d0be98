package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"time"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

type commitmentKey struct {
	carrier     id.CarrierCode
	serviceType string
}

// Snapshot is an immutable, validated view of the guarantee and exception catalogs.
// Audits read a single snapshot for their whole evaluation; a reload builds a new
// Snapshot and swaps it in through the Provider.
type Snapshot struct {
	version     string
	commitments map[commitmentKey][]ServiceCommitment // ValidFrom descending
	exceptions  map[id.CarrierCode][]ExceptionRule    // deterministic scan order
}

// NewSnapshot validates the catalog contents and builds a Snapshot. An empty version
// is replaced by a content hash so two loads of the same rules report the same version.
func NewSnapshot(version string, commitments []ServiceCommitment, rules []ExceptionRule) (*Snapshot, error) {
	s := &Snapshot{
		commitments: make(map[commitmentKey][]ServiceCommitment),
		exceptions:  make(map[id.CarrierCode][]ExceptionRule),
	}

	type windowKey struct {
		commitmentKey
		validFrom time.Time
	}
	seenWindows := make(map[windowKey]struct{}, len(commitments))
	for _, c := range commitments {
		c.Carrier = id.NormalizeCarrier(string(c.Carrier))
		c.ServiceType = strings.TrimSpace(c.ServiceType)
		c.ValidFrom = c.ValidFrom.UTC()
		if c.ValidTo != nil {
			to := c.ValidTo.UTC()
			c.ValidTo = &to
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		key := commitmentKey{carrier: c.Carrier, serviceType: c.ServiceType}
		wk := windowKey{commitmentKey: key, validFrom: c.ValidFrom}
		if _, dup := seenWindows[wk]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate service commitment").
				With("carrier", c.Carrier).
				With("service_type", c.ServiceType).
				With("valid_from", c.ValidFrom.Format(time.RFC3339))
		}
		seenWindows[wk] = struct{}{}
		s.commitments[key] = append(s.commitments[key], c)
	}
	for key := range s.commitments {
		slices.SortFunc(s.commitments[key], func(a, b ServiceCommitment) int {
			return b.ValidFrom.Compare(a.ValidFrom)
		})
	}

	type ruleKey struct {
		carrier    id.CarrierCode
		matchType  MatchType
		matchValue string
	}
	seenRules := make(map[ruleKey]struct{}, len(rules))
	for _, r := range rules {
		r.Carrier = id.NormalizeCarrier(string(r.Carrier))
		r.MatchType = MatchType(strings.ToUpper(strings.TrimSpace(string(r.MatchType))))
		r.Category = Category(strings.ToUpper(strings.TrimSpace(string(r.Category))))
		r.MatchValue = strings.TrimSpace(r.MatchValue)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		rk := ruleKey{carrier: r.Carrier, matchType: r.MatchType, matchValue: strings.ToUpper(r.MatchValue)}
		if _, dup := seenRules[rk]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate exception rule").
				With("carrier", r.Carrier).
				With("match_type", r.MatchType).
				With("match_value", r.MatchValue)
		}
		seenRules[rk] = struct{}{}
		s.exceptions[r.Carrier] = append(s.exceptions[r.Carrier], r)
	}
	for carrier := range s.exceptions {
		slices.SortFunc(s.exceptions[carrier], compareRules)
	}

	if version == "" {
		version = s.contentHash()
	}
	s.version = version
	return s, nil
}

// compareRules orders CODE rules before KEYWORD rules (exact codes are the more
// specific signal), then by match value and ID, so scans never depend on load order.
func compareRules(a, b ExceptionRule) int {
	if a.MatchType != b.MatchType {
		if a.MatchType == MatchCode {
			return -1
		}
		return 1
	}
	if c := strings.Compare(strings.ToUpper(a.MatchValue), strings.ToUpper(b.MatchValue)); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// Version identifies the catalog contents an audit was evaluated against.
func (s *Snapshot) Version() string { return s.version }

// CommitmentFor selects the commitment for carrier and service type whose window
// contains shippedAt. Overlapping windows resolve to the latest ValidFrom.
func (s *Snapshot) CommitmentFor(carrier id.CarrierCode, serviceType string, shippedAt time.Time) (ServiceCommitment, bool) {
	key := commitmentKey{carrier: id.NormalizeCarrier(string(carrier)), serviceType: strings.TrimSpace(serviceType)}
	for _, c := range s.commitments[key] {
		if c.Covers(shippedAt) {
			return c, true
		}
	}
	return ServiceCommitment{}, false
}

// ExceptionsFor returns the carrier's rules in scan order. Callers must not modify the slice.
func (s *Snapshot) ExceptionsFor(carrier id.CarrierCode) []ExceptionRule {
	return s.exceptions[id.NormalizeCarrier(string(carrier))]
}

// Commitments returns every commitment, ordered by carrier, service type, then ValidFrom.
func (s *Snapshot) Commitments() []ServiceCommitment {
	var out []ServiceCommitment
	for _, cs := range s.commitments {
		out = append(out, cs...)
	}
	slices.SortFunc(out, func(a, b ServiceCommitment) int {
		if c := strings.Compare(string(a.Carrier), string(b.Carrier)); c != 0 {
			return c
		}
		if c := strings.Compare(a.ServiceType, b.ServiceType); c != 0 {
			return c
		}
		return a.ValidFrom.Compare(b.ValidFrom)
	})
	return out
}

// Exceptions returns every rule, ordered by carrier then scan order.
func (s *Snapshot) Exceptions() []ExceptionRule {
	carriers := make([]string, 0, len(s.exceptions))
	for c := range s.exceptions {
		carriers = append(carriers, string(c))
	}
	slices.Sort(carriers)
	var out []ExceptionRule
	for _, c := range carriers {
		out = append(out, s.exceptions[id.CarrierCode(c)]...)
	}
	return out
}

func (s *Snapshot) contentHash() string {
	payload, _ := json.Marshal(struct {
		Commitments []ServiceCommitment `json:"commitments"`
		Exceptions  []ExceptionRule     `json:"exceptions"`
	}{s.Commitments(), s.Exceptions()})
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:8])
}
