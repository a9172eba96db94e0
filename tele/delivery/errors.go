package delivery

import (
	"fmt"

	"github.com/juju/errors"
)

// Reason classifies why attempt ended without success.
type Reason uint8

const (
	ReasonNone Reason = iota
	DnsFailure
	ConnectFailure
	SendFailure
	RecvTimeout
	RecvFailure
	LinkDown
	QueueFull
	reasonCount
)

var reasonNames = [reasonCount]string{
	ReasonNone:     "none",
	DnsFailure:     "dns_failure",
	ConnectFailure: "connect_failure",
	SendFailure:    "send_failure",
	RecvTimeout:    "recv_timeout",
	RecvFailure:    "recv_failure",
	LinkDown:       "link_down",
	QueueFull:      "queue_full",
}

func (r Reason) String() string {
	if r < reasonCount {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Reasons lists all failure reasons, for metrics labels.
func Reasons() []Reason {
	rs := make([]Reason, 0, reasonCount-1)
	for r := ReasonNone + 1; r < reasonCount; r++ {
		rs = append(rs, r)
	}
	return rs
}

var (
	// Deliver called while another attempt is active.
	ErrBusy = errors.New("delivery attempt in progress")
	// Deliver called while link is not Up.
	ErrLinkDown = errors.New("link down")
	// Deliver called before min interval elapsed since last successful attempt start.
	ErrRateLimited = errors.New("rate limited")
)

type AttemptError struct {
	Reason Reason
	Phase  State
	Err    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("delivery %s phase=%s: %v", e.Reason, e.Phase, e.Err)
}

// ReasonOf extracts failure reason, ReasonNone for nil or foreign errors.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if err == ErrLinkDown {
		return LinkDown
	}
	if ae, ok := err.(*AttemptError); ok {
		return ae.Reason
	}
	if ae, ok := errors.Cause(err).(*AttemptError); ok {
		return ae.Reason
	}
	return ReasonNone
}
