package state

import (
	"testing"

	"github.com/embarcatech/sensorlink/hardware/input"
	"github.com/embarcatech/sensorlink/log2"
)

// NewTestGlobal builds initialized Global from inline config with static sensor source.
func NewTestGlobal(t testing.TB, confString string) *Global {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	log := log2.NewTest(t, log2.LDebug)
	// log := log2.NewStderr(log2.LDebug) // useful with panics
	g := NewGlobal(log)
	g.Hardware.Source = input.NewStatic(input.StaticIdle)
	g.MustInit(MustReadConfig(log, fs, "test-inline"))
	return g
}
