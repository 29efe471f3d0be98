package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

// catalogNamespace seeds deterministic IDs for file entries that omit one, so the
// same file always yields the same rule IDs (and therefore the same verdicts).
var catalogNamespace = uuid.MustParse("5b7f0f3e-6c1a-4d8e-9a57-2f3c8d1e0a44")

type fileDocument struct {
	Version     string           `yaml:"version"`
	Commitments []fileCommitment `yaml:"commitments"`
	Exceptions  []fileException  `yaml:"exceptions"`
}

type fileCommitment struct {
	ID          string     `yaml:"id"`
	Carrier     string     `yaml:"carrier"`
	ServiceType string     `yaml:"service_type"`
	Guaranteed  bool       `yaml:"guaranteed"`
	CommitType  string     `yaml:"commit_type"`
	CommitTime  string     `yaml:"commit_time"`
	TransitDays *int       `yaml:"transit_days"`
	ValidFrom   time.Time  `yaml:"valid_from"`
	ValidTo     *time.Time `yaml:"valid_to"`
}

type fileException struct {
	ID         string `yaml:"id"`
	Carrier    string `yaml:"carrier"`
	MatchType  string `yaml:"match_type"`
	MatchValue string `yaml:"match_value"`
	Excusable  bool   `yaml:"excusable"`
	Category   string `yaml:"category"`
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return snap, nil
}

// Parse decodes a YAML catalog document. Unknown keys are rejected.
func Parse(data []byte) (*Snapshot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc fileDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode catalog")
	}

	commitments := make([]ServiceCommitment, 0, len(doc.Commitments))
	for i, fc := range doc.Commitments {
		c, err := fc.toModel()
		if err != nil {
			return nil, fmt.Errorf("commitments[%d]: %w", i, err)
		}
		commitments = append(commitments, c)
	}
	rules := make([]ExceptionRule, 0, len(doc.Exceptions))
	for i, fe := range doc.Exceptions {
		r, err := fe.toModel()
		if err != nil {
			return nil, fmt.Errorf("exceptions[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return NewSnapshot(doc.Version, commitments, rules)
}

func (fc fileCommitment) toModel() (ServiceCommitment, error) {
	carrier, err := id.ParseCarrierCode(fc.Carrier)
	if err != nil {
		return ServiceCommitment{}, err
	}
	c := ServiceCommitment{
		Carrier:     carrier,
		ServiceType: strings.TrimSpace(fc.ServiceType),
		Guaranteed:  fc.Guaranteed,
		TransitDays: 1,
		ValidFrom:   fc.ValidFrom,
		ValidTo:     fc.ValidTo,
	}
	if fc.TransitDays != nil {
		c.TransitDays = *fc.TransitDays
	}
	if fc.CommitType != "" {
		if c.CommitType, err = ParseCommitType(fc.CommitType); err != nil {
			return ServiceCommitment{}, err
		}
	} else {
		c.CommitType = CommitEndOfDay
	}
	if fc.CommitTime != "" {
		ct, err := ParseClockTime(fc.CommitTime)
		if err != nil {
			return ServiceCommitment{}, err
		}
		c.CommitTime = &ct
	}
	if fc.ID != "" {
		if c.ID, err = id.ParseCommitmentID(fc.ID); err != nil {
			return ServiceCommitment{}, err
		}
	} else {
		name := fmt.Sprintf("commitment|%s|%s|%s", carrier, c.ServiceType, fc.ValidFrom.UTC().Format(time.RFC3339))
		c.ID = id.CommitmentID(uuid.NewSHA1(catalogNamespace, []byte(name)))
	}
	return c, nil
}

func (fe fileException) toModel() (ExceptionRule, error) {
	carrier, err := id.ParseCarrierCode(fe.Carrier)
	if err != nil {
		return ExceptionRule{}, err
	}
	r := ExceptionRule{
		Carrier:    carrier,
		MatchValue: strings.TrimSpace(fe.MatchValue),
		Excusable:  fe.Excusable,
	}
	if r.MatchType, err = ParseMatchType(fe.MatchType); err != nil {
		return ExceptionRule{}, err
	}
	if r.Category, err = ParseCategory(fe.Category); err != nil {
		return ExceptionRule{}, err
	}
	if fe.ID != "" {
		if r.ID, err = id.ParseExceptionRuleID(fe.ID); err != nil {
			return ExceptionRule{}, err
		}
	} else {
		name := fmt.Sprintf("exception|%s|%s|%s", carrier, r.MatchType, strings.ToUpper(r.MatchValue))
		r.ID = id.ExceptionRuleID(uuid.NewSHA1(catalogNamespace, []byte(name)))
	}
	return r, nil
}
