package mem

import (
	"fmt"

	"github.com/fjl/memsize"
)

// ProcessFootprint reports the Go-side heap footprint of the object graph
// reachable from root, for comparison against the VM's own arena
// accounting; the CLI does not call it. This walks ordinary Go objects
// (Class/Instance/Proc graphs) that live outside the arena — see the design
// note in DESIGN.md on why those graph-shaped values are not arena-backed.
func ProcessFootprint(root interface{}) string {
	r := memsize.Scan(root)
	return fmt.Sprintf("go-heap=%s", r.Total.String())
}
