package helpers

import (
	"github.com/temoto/alive/v2"
)

// AliveSub stops leaf when root is stopping.
// Blocks until either one stops, run it in goroutine.
func AliveSub(root, leaf *alive.Alive) {
	select {
	case <-root.StopChan():
		leaf.Stop()
	case <-leaf.StopChan():
	}
}
