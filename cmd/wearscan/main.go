package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"furnacewear/internal/logging"
	"furnacewear/pkg/config"
	"furnacewear/pkg/inspection"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing scan CSV files")
	configPath := flag.String("config", "furnacewear.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: ingest.workers from config)")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save slice images of every scan along all axes")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices (default: output.slicesDir from config)")
	material := flag.String("material", "", "Repair material (default: analysis.repairMaterial from config)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Ingest.Workers = *numCores
	}
	if *extractSlices {
		cfg.Output.ExtractSlices = true
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if *material != "" {
		cfg.Analysis.RepairMaterial = *material
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := cfg.Logging.Level
	if !cfg.Output.Verbose {
		level = "warn"
	}
	logger := logging.New(level, cfg.Logging.JSON)

	catalogue, err := cfg.Catalogue()
	if err != nil {
		log.Fatalf("Invalid material catalogue: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("FURNACE REFRACTORY WEAR INSPECTION")
	fmt.Println("================================")

	params := &inspection.Params{
		InputDir:      *inputDir,
		NumCores:      cfg.Ingest.Workers,
		Parse:         cfg.ParseOptions(),
		Analysis:      cfg.AnalysisParams(),
		Constants:     cfg.RepairConstants(),
		Materials:     catalogue,
		ExtractSlices: cfg.Output.ExtractSlices,
		SlicesDir:     cfg.Output.SlicesDir,
		Logger:        logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Inspecting %s with %d workers...\n", *inputDir, params.NumCores)
	report, err := inspection.NewInspector(params).Process(ctx)
	if err != nil {
		log.Fatalf("Inspection failed: %v", err)
	}

	fmt.Printf("\nInspection completed in %.2f seconds\n", report.Duration.Seconds())
	fmt.Printf("Files inspected: %d, rejected: %d\n", len(report.Files), len(report.Failures))
	for _, f := range report.Failures {
		fmt.Printf("- rejected %s\n", f.Error())
	}

	fmt.Printf("\nRepair proposals (%s, threshold %.1f):\n", params.Analysis.RepairMaterial, params.Analysis.WearThreshold)
	fmt.Println("=======================================")
	for _, fr := range report.Files {
		fmt.Printf("%s: %d points, thickness %.2f..%.2f (mean %.2f), %d skipped rows\n",
			fr.Summary.Name, fr.Summary.PointCount, fr.Stats.Min, fr.Stats.Max, fr.Stats.Mean, fr.Summary.SkippedRows)
		for i, area := range fr.Proposal.Areas {
			fmt.Printf("  area %d: %d points, %.3f m2, wear %.3f, %.4f m3, %.1f kg\n",
				i+1, area.PointCount, area.AreaSize, area.AvgWear, area.Volume, area.Weight)
		}
		fmt.Printf("  total: %d areas, %.4f m3, %.1f kg\n",
			len(fr.Proposal.Areas), fr.Proposal.Total.Volume, fr.Proposal.Total.Weight)
		if fr.Slices > 0 {
			fmt.Printf("  %d slice images written\n", fr.Slices)
		}
	}

	if len(report.Trend) > 0 {
		fmt.Println("\nWear trend between consecutive scans:")
		for _, c := range report.Trend {
			fmt.Printf("- %s -> %s: mean change %.3f", c.Base, c.Target, c.MeanDelta)
			if c.ElapsedDays > 0 {
				fmt.Printf(" over %.1f days (%.3f per day)", c.ElapsedDays, c.WearRate)
			}
			fmt.Println()
		}
	}
}
