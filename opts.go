package synopsys

import (
	"github.com/fogfish/opts"
)

// WithActors adds actors to a Play.
func WithActors(actor Actor, extraActors ...Actor) opts.Option[Play] {
	return opts.Type[Play](func(p *Play) error {
		p.actors = append(p.actors, actor)
		p.actors = append(p.actors, extraActors...)
		return nil
	})
}

// WithHook sets the instrumentation hook. Use CompositeHook to install several.
func WithHook(hook Hook) opts.Option[Play] {
	return opts.Type[Play](func(p *Play) error {
		p.hook = hook
		return nil
	})
}

// WithAutoConnect makes the Play connect the bus on start and disconnect it
// once every actor has stopped.
var WithAutoConnect = opts.ForName[Play, bool]("autoConnect")
