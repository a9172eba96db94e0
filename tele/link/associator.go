package link

import (
	"context"
	"net"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
)

// Associator brings link layer up, e.g. Wi-Fi station association.
type Associator interface {
	Associate(ctx context.Context) error
	Associated() bool
	String() string
}

// Static link is always associated. Used for wired hosts and dry runs.
type Static struct{ down int32 }

func (s *Static) Associate(context.Context) error {
	if !s.Associated() {
		return errors.New("static link down")
	}
	return nil
}
func (s *Static) Associated() bool { return atomic.LoadInt32(&s.down) == 0 }
func (s *Static) String() string   { return "static" }

// SetUp simulates association change.
func (s *Static) SetUp(up bool) {
	v := int32(1)
	if up {
		v = 0
	}
	atomic.StoreInt32(&s.down, v)
}

// Interface watches network interface, associated means up with IPv4 address.
// Optional Command is run to (re)associate, arguments may contain
// {iface} {ssid} {password} placeholders.
type Interface struct {
	Name     string
	SSID     string
	Password string
	Command  []string

	PollInterval time.Duration
	// test override
	lookup func(name string) (*net.Interface, []net.Addr, error)
}

func (i *Interface) String() string { return "iface:" + i.Name }

func (i *Interface) Associate(ctx context.Context) error {
	if len(i.Command) != 0 {
		args := make([]string, len(i.Command))
		r := strings.NewReplacer("{iface}", i.Name, "{ssid}", i.SSID, "{password}", i.Password)
		for j, a := range i.Command {
			args[j] = r.Replace(a)
		}
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			// do not print args, they may contain password
			return errors.Annotatef(err, "link connect command=%s output=%s", i.Command[0], strings.TrimSpace(string(out)))
		}
	}
	poll := i.PollInterval
	if poll == 0 {
		poll = 200 * time.Millisecond
	}
	for {
		if i.Associated() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Annotatef(ctx.Err(), "link iface=%s not associated", i.Name)
		case <-time.After(poll):
		}
	}
}

func (i *Interface) Associated() bool {
	lookup := i.lookup
	if lookup == nil {
		lookup = lookupInterface
	}
	iface, addrs, err := lookup(i.Name)
	if err != nil || iface == nil || iface.Flags&net.FlagUp == 0 {
		return false
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil && !ipn.IP.IsLoopback() {
			return true
		}
	}
	return false
}

func lookupInterface(name string) (*net.Interface, []net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := iface.Addrs()
	return iface, addrs, err
}
