package fulfillment

import (
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/logger"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// run tracks the state of one PlaceOrder call.
type run struct {
	state  orders.State
	log    *logger.Logger
	onMove func(from, to orders.State)
}

func (r *run) to(next orders.State) {
	if !orders.CanTransition(r.state, next) {
		panic(fmt.Sprintf("fulfillment: invalid transition %s -> %s", r.state, next))
	}
	r.log.Debug("order state", "from", r.state, "to", next)
	if r.onMove != nil {
		r.onMove(r.state, next)
	}
	r.state = next
}
