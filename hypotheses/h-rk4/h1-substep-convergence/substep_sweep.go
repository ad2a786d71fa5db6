//go:build ignore

// H1 Sub-step Convergence Sweep
//
// Hypothesis: with preferences frozen per sub-step, the RK4 share update converges
// to the exact two-technology logistic solution at fourth order in the sub-step
// length, while forward Euler converges at first order. Four sub-steps per year
// should then be enough for RK4 to stay below 1e-5 absolute share error.
//
// Refuted if: the RK4 error at 4 sub-steps exceeds 1e-5, or halving the sub-step
// length reduces the RK4 error by less than 8x.
//
// Usage: go run substep_sweep.go --output substep_sweep.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ftt-sim/ftt-sim/sim"
)

func main() {
	output := flag.String("output", "substep_sweep.csv", "CSV output file")
	start := flag.Float64("share", 0.1, "Initial share of the cheaper technology")
	rate := flag.Float64("rate", 2.0, "Net substitution rate of the pair")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("creating %s: %v", *output, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"sub_steps", "integrator", "share", "abs_error"}); err != nil {
		log.Fatal(err)
	}

	exact := 1 / (1 + (1-*start) / *start * math.Exp(-*rate))
	for _, n := range []int{1, 2, 4, 8, 16, 32, 64} {
		for _, integ := range []struct {
			name string
			kind sim.Integrator
		}{{"rk4", sim.IntegratorRK4}, {"euler", sim.IntegratorEuler}} {
			got := integrate(*start, *rate, n, integ.kind)
			err := math.Abs(got - exact)
			fmt.Fprintf(os.Stderr, "N=%-3d %-5s share=%.9f err=%.3e\n", n, integ.name, got, err)
			if werr := w.Write([]string{
				strconv.Itoa(n), integ.name,
				strconv.FormatFloat(got, 'g', 12, 64),
				strconv.FormatFloat(err, 'g', 6, 64),
			}); werr != nil {
				log.Fatal(werr)
			}
		}
	}
}

// integrate advances a two-technology pair through one year in n sub-steps. The
// rate matrix is chosen so the cheaper technology 0 always wins with preference 1.
func integrate(start, rate float64, n int, kind sim.Integrator) float64 {
	shares := []float64{start, 1 - start}
	rates := mat.NewDense(2, 2, []float64{0, rate, 0, 0})
	dt := 1 / float64(n)
	for step := 0; step < n; step++ {
		// huge cost gap: technology 1 is preferred over 0 with probability ~0
		flows := sim.PairwiseFlows(sim.RegionFlowInputs{
			Shares:     shares,
			Cost:       []float64{1, 1e6},
			Std:        []float64{1, 1},
			Gate:       []float64{0, 0},
			Eligible:   []bool{true, true},
			Rates:      rates,
			Segments:   1,
			Dt:         dt,
			TimeScale:  1,
			Integrator: kind,
		})
		shares = sim.EndogenousShares(shares, flows)
	}
	return shares[0]
}
