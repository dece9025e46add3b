// Package animate fades markers in one after another when a view loads.
package animate

import (
	"fmt"
	"time"

	"github.com/OCAP2/markerview/internal/events"
	"github.com/OCAP2/markerview/internal/view"
)

// Class is added to every marker container on load.
const Class = "markerview-fade-in"

// Defaults.
const (
	DefaultStagger  = 250 * time.Millisecond
	DefaultDuration = 500 * time.Millisecond
)

// Plugin marks restored markers for a staggered fade-in. Hosts render the
// class and the animation-delay style; the scene itself is not animated.
type Plugin struct {
	Stagger  time.Duration
	Duration time.Duration

	views map[*view.View]events.Token
}

// New returns a plugin with the default timings.
func New() *Plugin {
	return &Plugin{Stagger: DefaultStagger, Duration: DefaultDuration}
}

// Init subscribes to the view's load notification.
func (p *Plugin) Init(v *view.View) {
	if p.views == nil {
		p.views = make(map[*view.View]events.Token)
	}
	if _, ok := p.views[v]; ok {
		return
	}
	token, err := v.AddEventListener(events.Load, view.ViewHandler(p.markersLoaded))
	if err != nil {
		v.Logger().Error("animate: subscribing to load", "error", err)
		return
	}
	p.views[v] = token
}

// Detach removes the plugin's subscription from v.
func (p *Plugin) Detach(v *view.View) {
	if token, ok := p.views[v]; ok {
		v.RemoveEventListener(events.Load, token)
		delete(p.views, v)
	}
}

func (p *Plugin) markersLoaded(v *view.View) {
	for i, m := range v.Markers() {
		delay := time.Duration(i) * p.Stagger
		m.Container().SetAttrs(
			"class", Class,
			"style", fmt.Sprintf("opacity: 0; animation: %s %dms ease-in %dms forwards",
				Class, p.Duration.Milliseconds(), delay.Milliseconds()),
		)
	}
}
