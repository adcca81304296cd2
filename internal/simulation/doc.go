// Package simulation runs synthetic protocol drivers through the
// measurement harness, producing run records that exercise the whole
// normalize, aggregate and compare pipeline without a network.
//
// Drivers are described by DriverSpec: one MetricSpec per source key, each
// drawn from a normal distribution. Timing metrics advance a virtual clock
// inside Harness.Measure, so a trial takes no wall-clock time. Every driver
// runs in its own goroutine with its own Harness and random source, seeded
// from the scenario seed, so a scenario is reproducible.
//
// Usage:
//
//	func TestTransportWinner(t *testing.T) {
//	    records := simulation.MustRun(t, simulation.Scenario{
//	        Trials: 20,
//	        Seed:   7,
//	        Drivers: []simulation.DriverSpec{
//	            simulation.MustPreset("lwm2m"),
//	            simulation.MustPreset("matter"),
//	        },
//	    })
//	    result := simulation.Compare(t, records[0], records[1])
//	    simulation.AssertWinner(t, result, "transport_time", compare.WinnerA)
//	}
package simulation
