package alert

import (
	"fmt"
	"os"
	"sync"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Matching is based on event.Status or any of event.Kinds.
// Fires goroutines and does not block the caller. Delivery errors are
// logged to stderr.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			d.wg.Add(1)
			go func(cfg AlertConfig) {
				defer d.wg.Done()
				if err := Send(cfg, event); err != nil {
					fmt.Fprintf(os.Stderr, "alert: %s: %v\n", cfg.URL, err)
				}
			}(cfg)
		}
	}
}

// Wait blocks until every dispatched webhook has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Status || event.has(e) {
			return true
		}
	}
	return false
}
