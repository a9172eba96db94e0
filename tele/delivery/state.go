package delivery

import "fmt"

// State of delivery engine. Any state may fall back to Idle with failure reason.
type State int32

const (
	Idle State = iota
	Resolving
	Connecting
	Sending
	AwaitingResponse
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Connecting:
		return "connecting"
	case Sending:
		return "sending"
	case AwaitingResponse:
		return "awaiting_response"
	case Closing:
		return "closing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}
