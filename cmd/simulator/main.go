package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/signalsfoundry/virtualtime-simulator/actor"
	"github.com/signalsfoundry/virtualtime-simulator/internal/logging"
	"github.com/signalsfoundry/virtualtime-simulator/internal/observability"
	"github.com/signalsfoundry/virtualtime-simulator/sim"
	"github.com/signalsfoundry/virtualtime-simulator/vclock"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario file (JSON or YAML); empty runs the built-in demo")
	duration := flag.Int64("duration", 1000, "virtual run duration in ticks")
	mode := flag.String("mode", "feedback", "dispatch model: feedback or cooperative")
	withTrace := flag.Bool("trace", false, "collect and print the message trace")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	var clockMode vclock.Mode
	switch *mode {
	case "feedback":
		clockMode = vclock.ModeFeedback
	case "cooperative":
		clockMode = vclock.ModeCooperative
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	var metrics *observability.KernelCollector
	if *metricsAddr != "" {
		collector, err := observability.NewKernelCollector(nil)
		if err != nil {
			panic(err)
		}
		metrics = collector
		go func() {
			http.Handle("/metrics", collector.Handler())
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Error(ctx, "metrics server failed", logging.Any("err", err))
			}
		}()
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		panic(err)
	}
	defer shutdownTracing(ctx)

	opts := sim.Options{
		Trace:   *withTrace,
		Mode:    clockMode,
		Logger:  log,
		Metrics: metrics,
	}

	var s *sim.Simulation
	runFor := vclock.Time(*duration)
	if *scenarioPath != "" {
		scenario, err := sim.LoadScenarioFile(*scenarioPath)
		if err != nil {
			panic(err)
		}
		if scenario.Duration > 0 {
			runFor = scenario.Duration
		}
		s, err = scenario.Build(opts)
		if err != nil {
			panic(err)
		}
	} else {
		s, err = demoSimulation(opts)
		if err != nil {
			panic(err)
		}
	}

	fmt.Printf("Starting simulation: duration=%d ticks, mode=%s\n", runFor, clockMode)
	stats, err := s.Run(runFor)
	if err != nil {
		panic(err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out))

	if *withTrace {
		for _, ev := range s.Trace() {
			fmt.Printf("[t=%d] %s %s -> %s: %v\n", ev.Timestamp, ev.Kind, ev.From, ev.To, ev.Payload)
		}
	}

	if err := s.Stop(); err != nil {
		panic(err)
	}
	fmt.Println("Simulation complete.")
}

// demoSimulation wires two periodic senders, a forwarder, and their
// receivers.
func demoSimulation(opts sim.Options) (*sim.Simulation, error) {
	s, err := sim.New(opts)
	if err != nil {
		return nil, err
	}

	if err := s.AddActor("ticker", actor.Options{
		Pattern: actor.Periodic(100, "tick"),
		Targets: []string{"relay"},
	}); err != nil {
		return nil, err
	}
	if err := s.AddActor("tocker", actor.Options{
		Pattern: actor.Periodic(250, "tock"),
		Targets: []string{"collector"},
	}); err != nil {
		return nil, err
	}
	if err := s.AddActor("relay", actor.Options{
		Targets: []string{"collector"},
		OnReceive: func(msg any, state any) actor.Reaction {
			return actor.Send([]actor.Outgoing{actor.ToAll(msg)}, state)
		},
	}); err != nil {
		return nil, err
	}
	if err := s.AddActor("collector", actor.Options{}); err != nil {
		return nil, err
	}
	return s, nil
}
