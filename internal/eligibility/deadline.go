package eligibility

import (
	"strings"
	"time"
	_ "time/tzdata" // audits must not depend on the host's zoneinfo

	"carrieralpha/internal/catalog"
	"carrieralpha/internal/shipment"
)

// Base confidence per zone source.
const (
	confidenceDestination = 1.0
	confidenceOrigin      = 0.6
	confidenceUTC         = 0.3
	confidencePromise     = 1.0
)

// zoneResolution is the zone a deadline is evaluated in and how sure we are of it.
type zoneResolution struct {
	loc        *time.Location
	assumption TimezoneAssumption
	confidence float64
}

// resolveZone picks the destination zone, then the origin zone, then UTC. Names
// that do not load fall through to the next source.
func resolveZone(s *shipment.Shipment) zoneResolution {
	if loc, ok := loadZone(s.DestinationTimezone); ok {
		return zoneResolution{loc: loc, assumption: AssumeDestinationZone, confidence: confidenceDestination}
	}
	if loc, ok := loadZone(s.OriginTimezone); ok {
		return zoneResolution{loc: loc, assumption: AssumeOriginZone, confidence: confidenceOrigin}
	}
	return zoneResolution{loc: time.UTC, assumption: AssumeUTCFallback, confidence: confidenceUTC}
}

// shipZone is the zone the ship date is read in: the origin zone when known.
func shipZone(s *shipment.Shipment, fallback *time.Location) *time.Location {
	if loc, ok := loadZone(s.OriginTimezone); ok {
		return loc
	}
	return fallback
}

func loadZone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// addBusinessDays moves n weekdays forward from the date of t. n == 0 keeps the date.
func addBusinessDays(y int, m time.Month, d int, n int) (int, time.Month, int) {
	day := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	for added := 0; added < n; {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return day.Year(), day.Month(), day.Day()
}

// commitmentDeadline computes the calendar deadline for END_OF_DAY and TIME_DEFINITE
// commitments in zone.loc, counting transit days from the local ship date.
func commitmentDeadline(c catalog.ServiceCommitment, shippedAt time.Time, shipLoc *time.Location, zone zoneResolution) time.Time {
	sy, sm, sd := shippedAt.In(shipLoc).Date()
	y, m, d := addBusinessDays(sy, sm, sd, c.TransitDays)
	if c.CommitType == catalog.CommitTimeDefinite && c.CommitTime != nil {
		return time.Date(y, m, d, c.CommitTime.Hour, c.CommitTime.Minute, 0, 0, zone.loc)
	}
	// the whole local day is on time, including its last fractional second
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), zone.loc)
}
