package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Kush-Singh-26/sewa/internal/config"
	"github.com/Kush-Singh-26/sewa/internal/server"
	"github.com/Kush-Singh-26/sewa/internal/version"
)

func main() {
	args := os.Args[1:]

	// Bare `sewa` and `sewa <port>` serve immediately.
	if len(args) == 0 {
		runServe(nil)
		return
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "serve":
		runServe(rest)
	case "stats":
		runStats(rest)
	case "version":
		fmt.Println("sewa", version.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		if strings.HasPrefix(command, "-") {
			runServe(args)
			return
		}
		port, err := config.ParsePort(command)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		runServe([]string{"-port", strconv.Itoa(port)})
	}
}

func runServe(args []string) {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			return
		}
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)
	if err := srv.Run(ctx); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: sewa [port]")
	fmt.Println("       sewa <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve          Serve the root directory (the default command)")
	fmt.Println("  stats          Show recorded request statistics")
	fmt.Println("  version        Show the sewa version")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nFlags for serve:")
	fmt.Println("  -port          Port to listen on (default 8000)")
	fmt.Println("  -host          Host or IP to bind (default: all interfaces)")
	fmt.Println("  -root          Directory to serve (default: the binary's directory)")
	fmt.Println("  -live          Live reload via /events (default true)")
	fmt.Println("  -compress      Gzip responses (default true)")
	fmt.Println("  -stats         Record request statistics (default true)")
	fmt.Println("  -quiet         Silence per-request logs")
	fmt.Println("\nFlags for stats:")
	fmt.Println("  -root          Directory whose statistics to show")
	fmt.Println("  -reset         Clear recorded request statistics")
}
