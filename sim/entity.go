package sim

import "fmt"

// Entity is a unit of material flow. It is created by a generator, passed by
// reference through stores and consumed by a drain.
type Entity struct {
	ID        string
	Origin    string  // ID of the generator that created the entity
	Priority  int     // Lower values are served first by priority stores
	CreatedAt float64 // Simulation time of creation
	// Ready is false while a processor holds the entity and true whenever it
	// is available for the next station.
	Ready bool
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s@%.4f", e.ID, e.CreatedAt)
}
