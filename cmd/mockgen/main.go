package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"discotrack/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./cache", "Output directory for the issue-log cache")
	sourceID := flag.String("source", "default", "Issue-log partition to write")
	count := flag.Int("count", 200, "Number of issues to generate")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Now:          time.Now(),
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d, Seed: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, cfg.Seed, *outDir)

	logs := engine.Generate(cfg)
	if err := engine.Save(*outDir, *sourceID, logs); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done. Run `discotrack recompute` to derive cycles.")
}
