// Command analyze-listings runs one detection pass over a JSON snapshot of
// symbol statuses and calendar entries and prints the result. Useful for
// replaying captured exchange snapshots without a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"early-listing-bot/internal/detector"
	"early-listing-bot/internal/logging"
)

type snapshot struct {
	Symbols         []detector.SymbolStatus  `json:"symbols"`
	CalendarEntries []detector.CalendarEntry `json:"calendar_entries"`
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON snapshot file")
	threshold := flag.Float64("threshold", 0, "confidence threshold override (0 uses the default)")
	pretty := flag.Bool("pretty", true, "indent JSON output")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze-listings -input snapshot.json [-threshold 70]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read snapshot: %v\n", err)
		os.Exit(1)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse snapshot: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: "WARN", Output: "stderr"})

	ready := detector.NewReadyStateDetector(detector.DefaultReadyStateConfig(), nil, nil, nil, logger)
	preReady := detector.NewPreReadyDetector(detector.DefaultPreReadyConfig(), logger)
	advance := detector.NewAdvanceOpportunityDetector(detector.DefaultAdvanceConfig(), nil, nil, nil, logger)
	orchestrator := detector.NewOrchestrator(ready, preReady, advance, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := orchestrator.AnalyzePatterns(ctx, detector.AnalysisRequest{
		Symbols:             snap.Symbols,
		CalendarEntries:     snap.CalendarEntries,
		ConfidenceThreshold: *threshold,
	})

	var out []byte
	if *pretty {
		out, err = json.MarshalIndent(result, "", "  ")
	} else {
		out, err = json.Marshal(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
