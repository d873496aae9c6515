package sim_test

import (
	"fmt"

	"github.com/signalsfoundry/virtualtime-simulator/actor"
	"github.com/signalsfoundry/virtualtime-simulator/sim"
)

func Example() {
	s, err := sim.New(sim.Options{})
	if err != nil {
		panic(err)
	}
	defer s.Stop()

	if err := s.AddActor("producer", actor.Options{
		Pattern: actor.Periodic(100, "work"),
		Targets: []string{"worker"},
	}); err != nil {
		panic(err)
	}
	if err := s.AddActor("worker", actor.Options{}); err != nil {
		panic(err)
	}

	stats, err := s.Run(1000)
	if err != nil {
		panic(err)
	}

	fmt.Printf("producer sent %d\n", stats.Actors["producer"].Sent)
	fmt.Printf("worker received %d\n", stats.Actors["worker"].Received)
	fmt.Printf("total %d over %d ms\n", stats.TotalMessages, stats.DurationMS)
	// Output:
	// producer sent 10
	// worker received 10
	// total 10 over 1000 ms
}
