package sim

import "fmt"

// Router decides rack attachment and per-switch forwarding.
// Rack indices outside [0, racks) address the aggregation switch.
type Router interface {
	// HostRack returns the rack whose ToR a host's egress feeds.
	HostRack(host int) int
	// IsLocal reports whether the ToR of rack delivers to dst directly.
	IsLocal(rack, dst int) bool
	// DownlinkRack returns the rack the aggregation switch forwards dst to.
	DownlinkRack(dst int) int
}

// RackRouter places host i on rack i/hostsPerRack and routes consistently
// with that placement at every switch.
type RackRouter struct {
	HostsPerRack int
}

func (r RackRouter) HostRack(host int) int      { return host / r.HostsPerRack }
func (r RackRouter) IsLocal(rack, dst int) bool { return dst/r.HostsPerRack == rack }
func (r RackRouter) DownlinkRack(dst int) int   { return dst / r.HostsPerRack }

// ReferenceRouter reproduces the reference model's formulas literally:
// hosts attach to (i+1)/hostsPerRack, ToRs deliver when dst/hostsPerRack
// matches and the aggregation switch forwards to (dst+1)/hostsPerRack.
// Destinations at a rack boundary bounce between switches until MaxHops.
type ReferenceRouter struct {
	HostsPerRack int
}

func (r ReferenceRouter) HostRack(host int) int      { return (host + 1) / r.HostsPerRack }
func (r ReferenceRouter) IsLocal(rack, dst int) bool { return dst/r.HostsPerRack == rack }
func (r ReferenceRouter) DownlinkRack(dst int) int   { return (dst + 1) / r.HostsPerRack }

// Routing mode names accepted by NewRouter.
const (
	RoutingRack      = "rack"
	RoutingReference = "reference"
)

// ValidRoutingModes is the set of recognized routing mode names.
var ValidRoutingModes = map[string]bool{"": true, RoutingRack: true, RoutingReference: true}

// NewRouter creates a router by mode name; "" selects RoutingRack.
func NewRouter(mode string, hostsPerRack int) (Router, error) {
	switch mode {
	case "", RoutingRack:
		return RackRouter{HostsPerRack: hostsPerRack}, nil
	case RoutingReference:
		return ReferenceRouter{HostsPerRack: hostsPerRack}, nil
	default:
		return nil, fmt.Errorf("%w: unknown routing mode %q", ErrInvalidConfig, mode)
	}
}
