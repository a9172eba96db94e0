package delivery

// Values are read and modified atomically, but not consistently,
// i.e. it is possible to read Attempts=1 Success=0 while attempt is finishing.

import (
	"expvar"
	"fmt"
	"strings"
)

type Stat struct {
	Attempts    expvar.Int
	Success     expvar.Int
	Rejected    expvar.Int // transport success with non-2xx status
	Busy        expvar.Int
	RateLimited expvar.Int
	CacheHits   expvar.Int
	BytesSent   expvar.Int
	BytesRecv   expvar.Int
	failures    [reasonCount]expvar.Int
}

func (s *Stat) Failure(r Reason) int64 {
	if r >= reasonCount {
		return 0
	}
	return s.failures[r].Value()
}

func (s *Stat) addFailure(r Reason) {
	if r < reasonCount {
		s.failures[r].Add(1)
	}
}

func (s *Stat) Failures() int64 {
	var n int64
	for r := range s.failures {
		n += s.failures[r].Value()
	}
	return n
}

func (s *Stat) String() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, `{"attempts":%d,"success":%d,"rejected":%d,"busy":%d,"rate_limited":%d,"cache_hits":%d,"sent":%d,"recv":%d`,
		s.Attempts.Value(), s.Success.Value(), s.Rejected.Value(), s.Busy.Value(), s.RateLimited.Value(),
		s.CacheHits.Value(), s.BytesSent.Value(), s.BytesRecv.Value())
	for _, r := range Reasons() {
		fmt.Fprintf(&b, `,"%s":%d`, r, s.Failure(r))
	}
	b.WriteString("}")
	return b.String()
}
