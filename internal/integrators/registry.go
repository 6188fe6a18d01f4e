package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/jointlock/internal/dynamo"
)

var constructors = map[string]func() dynamo.Integrator{
	"euler":  func() dynamo.Integrator { return NewEuler() },
	"rk3":    func() dynamo.Integrator { return NewRK3() },
	"rk4":    func() dynamo.Integrator { return NewRK4() },
	"rk45":   func() dynamo.Integrator { return NewRK45() },
	"verlet": func() dynamo.Integrator { return NewVerlet() },
}

// New returns a fresh integrator by its short name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
