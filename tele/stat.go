package tele

import (
	"fmt"

	"github.com/embarcatech/sensorlink/tele/delivery"
	"github.com/embarcatech/sensorlink/tele/link"
	"github.com/embarcatech/sensorlink/tele/queue"
	"github.com/embarcatech/sensorlink/tele/sampler"
)

// Stat is point-in-time view of pipeline counters.
// Component counters are live pointers, Queue and states are copies.
type Stat struct {
	Sampler       *sampler.Stat
	Queue         queue.Stat
	Delivery      *delivery.Stat
	DeliveryState delivery.State
	Link          *link.Stat
	LinkState     link.State
	Superseded    int64
}

func (s Stat) String() string {
	return fmt.Sprintf(`{"sampler":{"ticks":%d,"changes":%d,"dropped":%d,"read_errors":%d},"queue":{"len":%d,"pushed":%d,"dropped":%d},"superseded":%d,"delivery":%s,"link":{"state":"%s","attempts":%d,"drops":%d}}`,
		s.Sampler.Ticks.Value(), s.Sampler.Changes.Value(), s.Sampler.Dropped.Value(), s.Sampler.ReadErrors.Value(),
		s.Queue.Len, s.Queue.Pushed, s.Queue.Dropped,
		s.Superseded,
		s.Delivery.String(),
		s.LinkState, s.Link.Attempts.Value(), s.Link.Drops.Value())
}
