package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "carrieralpha/pkg/domain"
	dErrors "carrieralpha/pkg/domain-errors"
)

type SnapshotSuite struct {
	suite.Suite
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotSuite))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func commitment(service string, from time.Time, to *time.Time, transit int) ServiceCommitment {
	return ServiceCommitment{
		ID:          id.CommitmentID(uuid.New()),
		Carrier:     id.CarrierFedEx,
		ServiceType: service,
		Guaranteed:  true,
		CommitType:  CommitEndOfDay,
		TransitDays: transit,
		ValidFrom:   from,
		ValidTo:     to,
	}
}

// TestCommitmentFor covers temporal selection.
//
// Justification:
// - shipments match the rule in force on the ship date, never the newest row
// - overlapping windows resolve to the latest ValidFrom at or before the ship instant
// - ValidTo is exclusive
func (s *SnapshotSuite) TestCommitmentFor() {
	cutover := date(2024, time.June, 1)
	old := commitment("FEDEX_2_DAY", date(2023, time.January, 1), &cutover, 2)
	current := commitment("FEDEX_2_DAY", cutover, nil, 3)

	snap, err := NewSnapshot("v1", []ServiceCommitment{current, old}, nil)
	s.Require().NoError(err)

	s.Run("ship date before cutover uses the old rule", func() {
		got, ok := snap.CommitmentFor("fedex", "FEDEX_2_DAY", date(2024, time.May, 31))
		s.Require().True(ok)
		s.Equal(old.ID, got.ID)
		s.Equal(2, got.TransitDays)
	})

	s.Run("valid_to is exclusive", func() {
		got, ok := snap.CommitmentFor(id.CarrierFedEx, "FEDEX_2_DAY", cutover)
		s.Require().True(ok)
		s.Equal(current.ID, got.ID)
	})

	s.Run("ship date before every window finds nothing", func() {
		_, ok := snap.CommitmentFor(id.CarrierFedEx, "FEDEX_2_DAY", date(2022, time.December, 31))
		s.False(ok)
	})

	s.Run("unknown service finds nothing", func() {
		_, ok := snap.CommitmentFor(id.CarrierFedEx, "SMART_POST", cutover)
		s.False(ok)
	})

	s.Run("overlapping open-ended windows prefer the latest valid_from", func() {
		promo := commitment("PRIORITY", date(2024, time.March, 1), nil, 1)
		base := commitment("PRIORITY", date(2024, time.January, 1), nil, 2)
		overlap, err := NewSnapshot("v2", []ServiceCommitment{base, promo}, nil)
		s.Require().NoError(err)

		got, ok := overlap.CommitmentFor(id.CarrierFedEx, "PRIORITY", date(2024, time.April, 1))
		s.Require().True(ok)
		s.Equal(promo.ID, got.ID)

		got, ok = overlap.CommitmentFor(id.CarrierFedEx, "PRIORITY", date(2024, time.February, 1))
		s.Require().True(ok)
		s.Equal(base.ID, got.ID)
	})
}

func (s *SnapshotSuite) TestValidation() {
	s.Run("duplicate window is rejected", func() {
		from := date(2024, time.January, 1)
		_, err := NewSnapshot("", []ServiceCommitment{
			commitment("PRIORITY", from, nil, 1),
			commitment("PRIORITY", from, nil, 2),
		}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("time-definite without commit time is rejected", func() {
		c := commitment("PRIORITY", date(2024, time.January, 1), nil, 1)
		c.CommitType = CommitTimeDefinite
		_, err := NewSnapshot("", []ServiceCommitment{c}, nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "commit_time")
	})

	s.Run("inverted window is rejected", func() {
		before := date(2023, time.January, 1)
		_, err := NewSnapshot("", []ServiceCommitment{commitment("PRIORITY", date(2024, time.January, 1), &before, 1)}, nil)
		s.Require().Error(err)
	})

	s.Run("duplicate exception differing only in case is rejected", func() {
		_, err := NewSnapshot("", nil, []ExceptionRule{
			{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierUPS, MatchType: MatchCode, MatchValue: "WX", Excusable: true, Category: CategoryWeather},
			{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierUPS, MatchType: MatchCode, MatchValue: "wx", Excusable: true, Category: CategoryWeather},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *SnapshotSuite) TestExceptionOrderingIsDeterministic() {
	rules := []ExceptionRule{
		{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierUPS, MatchType: MatchKeyword, MatchValue: "weather", Excusable: true, Category: CategoryWeather},
		{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierUPS, MatchType: MatchCode, MatchValue: "WX", Excusable: true, Category: CategoryWeather},
		{ID: id.ExceptionRuleID(uuid.New()), Carrier: id.CarrierUPS, MatchType: MatchKeyword, MatchValue: "address", Excusable: true, Category: CategoryAddress},
	}
	a, err := NewSnapshot("", nil, rules)
	s.Require().NoError(err)
	b, err := NewSnapshot("", nil, []ExceptionRule{rules[2], rules[1], rules[0]})
	s.Require().NoError(err)

	got := b.ExceptionsFor("ups")
	s.Require().Len(got, 3)
	s.Equal(MatchCode, got[0].MatchType)
	s.Equal("address", got[1].MatchValue)
	s.Equal("weather", got[2].MatchValue)
	s.Equal(a.ExceptionsFor(id.CarrierUPS), got)
	s.Equal(a.Version(), b.Version())
}

func (s *SnapshotSuite) TestContentVersionIsStable() {
	c := commitment("PRIORITY", date(2024, time.January, 1), nil, 1)
	a, err := NewSnapshot("", []ServiceCommitment{c}, nil)
	s.Require().NoError(err)
	b, err := NewSnapshot("", []ServiceCommitment{c}, nil)
	s.Require().NoError(err)
	s.Equal(a.Version(), b.Version())
	s.Contains(a.Version(), "sha256:")

	c.TransitDays = 2
	changed, err := NewSnapshot("", []ServiceCommitment{c}, nil)
	s.Require().NoError(err)
	s.NotEqual(a.Version(), changed.Version())
}

func (s *SnapshotSuite) TestProviderSwap() {
	first, err := NewSnapshot("v1", nil, nil)
	s.Require().NoError(err)
	second, err := NewSnapshot("v2", nil, nil)
	s.Require().NoError(err)

	p := NewProvider(first)
	held := p.Current()
	prev := p.Swap(second)

	s.Equal("v1", prev.Version())
	s.Equal("v1", held.Version())
	s.Equal("v2", p.Current().Version())
}
