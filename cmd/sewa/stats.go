package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kush-Singh-26/sewa/internal/config"
	"github.com/Kush-Singh-26/sewa/internal/stats"
)

// runStats implements the stats subcommand.
func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	reset := fs.Bool("reset", false, "Clear recorded request statistics")
	rootFlag := fs.String("root", "", "Directory whose statistics to show")
	_ = fs.Parse(args)

	root := *rootFlag
	if root == "" {
		root = config.DefaultRoot()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		fmt.Printf("❌ Could not resolve %q: %v\n", root, err)
		os.Exit(1)
	}

	rec := openStats(absRoot)
	defer func() { _ = rec.Close() }()

	if *reset {
		if err := rec.Reset(); err != nil {
			fmt.Printf("❌ Failed to clear statistics: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🧹 Statistics cleared.")
		return
	}

	entries, err := rec.Entries()
	if err != nil {
		fmt.Printf("❌ Failed to read statistics: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("📊 No requests recorded yet.")
		return
	}

	requests, bytes := stats.Totals(entries)

	fmt.Println("📊 Request Statistics")
	fmt.Println("════════════════════════════════════════")
	fmt.Printf("Root:      %s\n", absRoot)
	fmt.Printf("Requests:  %s\n", humanize.Comma(int64(requests)))
	fmt.Printf("Served:    %s\n", humanize.Bytes(bytes))
	fmt.Println()

	fmt.Printf("%8s  %10s  %6s  %-16s %s\n", "COUNT", "BYTES", "STATUS", "LAST", "PATH")
	for _, e := range entries {
		last := "never"
		if e.LastServed > 0 {
			last = humanize.Time(time.Unix(e.LastServed, 0))
		}
		fmt.Printf("%8d  %10s  %6d  %-16s %s\n",
			e.Count, humanize.Bytes(e.Bytes), e.LastStatus, last, e.Path)
	}
}

func openStats(root string) *stats.Recorder {
	rec, err := stats.Open(stats.DefaultPath(root))
	if err != nil {
		fmt.Printf("❌ Failed to open statistics store: %v\n", err)
		os.Exit(1)
	}
	return rec
}
