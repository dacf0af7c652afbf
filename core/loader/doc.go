// Package loader provides the feature loading system.
//
// Each feature implements the Feature interface, which names it, tells whether
// it is enabled and registers its routes:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager keeps the registry of features. Register adds one, LoadAll loads
// every enabled feature in registration order.
package loader
