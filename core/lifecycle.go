package core

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an auction. It is always derived, never stored.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusEnded
	StatusEndedClaimed
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:      "PENDING",
	StatusActive:       "ACTIVE",
	StatusEnded:        "ENDED",
	StatusEndedClaimed: "ENDED_CLAIMED",
	StatusCancelled:    "CANCELLED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for st, name := range statusNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Terminal reports whether no further transition can leave the status.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusEndedClaimed
}

// ResolveStatus derives the status of an auction at time now.
//
// Evaluation order (first match wins):
//  1. cancelled, or the platform is no longer active: CANCELLED
//  2. claimed: ENDED_CLAIMED
//  3. now before start: PENDING
//  4. start <= now < end: ACTIVE
//  5. otherwise: ENDED
//
// Rule 1 deliberately outranks rule 2: a claimed auction on a deactivated
// platform reports CANCELLED.
func ResolveStatus(now time.Time, auction *Auction, cancelled, claimed, platformActive bool) Status {
	if cancelled || !platformActive {
		return StatusCancelled
	}
	if claimed {
		return StatusEndedClaimed
	}
	if now.Before(auction.StartTime) {
		return StatusPending
	}
	if now.Before(auction.EndTime) {
		return StatusActive
	}
	return StatusEnded
}
