package main

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// SimFleet runs a set of simulated vehicles against one broker.
type SimFleet struct {
	cfg      Config
	vehicles []*SimulatedAGV
}

func NewSimFleet(cfg Config) *SimFleet {
	cfg.SetDefaults()
	f := &SimFleet{cfg: cfg}
	for i := 1; i <= cfg.Vehicles; i++ {
		f.vehicles = append(f.vehicles, NewSimulatedAGV(fmt.Sprintf("agv-%d", i), cfg))
	}
	return f
}

// Run blocks until ctx is done and every vehicle has disconnected.
func (f *SimFleet) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, v := range f.vehicles {
		wg.Add(1)
		go func(v *SimulatedAGV) {
			defer wg.Done()
			if err := v.Run(ctx); err != nil {
				log.Printf("%s: %v", v.Serial, err)
			}
		}(v)
	}
	wg.Wait()
}
