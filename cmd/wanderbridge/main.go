// wanderbridge - Minecraft server lifecycle monitor and chat bridge
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wanderlust/wanderbridge/internal/api"
	"github.com/wanderlust/wanderbridge/internal/auth"
	"github.com/wanderlust/wanderbridge/internal/bridge"
	"github.com/wanderlust/wanderbridge/internal/config"
	"github.com/wanderlust/wanderbridge/internal/lifecycle"
	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
	"github.com/wanderlust/wanderbridge/internal/tail"
)

var version = "dev"

const defaultConfigPath = "/etc/wanderbridge/config.yml"

// restartExitCode tells the process manager to restart us immediately:
// the scheduled post-midnight restart re-attaches the log tail to the
// freshly rotated file. Any other exit means stay down.
const restartExitCode = 17

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "admin":
		cmdAdmin(os.Args[2:])
	case "version":
		fmt.Printf("wanderbridge %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: wanderbridge <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve          Run the bridge (monitor, relay, HTTP API)")
	fmt.Println("  status         One-shot server status to stdout")
	fmt.Println("  admin passwd   Generate a bcrypt hash for the API admin password")
	fmt.Println("  version        Show version")
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else {
			log.Fatalf("No config file found at %s. Use --config to specify one.", defaultConfigPath)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	log.Printf("wanderbridge %s starting...", version)
	log.Printf("Bridging %s:%d (rcon :%d)", cfg.Minecraft.Host, cfg.Minecraft.Port, cfg.Rcon.Port)

	files, err := store.Open(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("Failed to open data dir: %v", err)
	}
	hist, err := store.OpenHistory(cfg.Data.HistoryPath)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	defer hist.Close()

	clk := sched.Real{}
	machine := lifecycle.NewMachine(clk.Now())
	rcon := mc.NewClient(cfg.Minecraft.Host, cfg.Rcon.Port, cfg.Rcon.Password, cfg.Rcon.Timeout)
	prober := mc.NewProber(cfg.Minecraft.Host, cfg.Minecraft.Port, cfg.Rcon.Timeout)

	authService := auth.NewService(cfg.API.JWTSecret, cfg.API.AdminPasswordHash, cfg.API.TokenDuration)
	if cfg.API.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Auth tokens will use an empty secret.")
	}

	// The router needs the inbound handler and the dispatcher needs the
	// router's websocket hub, so the callback indirects through a
	// variable assigned below.
	var dispatcher *bridge.Dispatcher
	router := api.NewRouter(machine, prober, rcon, hist, authService, clk, func(author, text string) {
		if dispatcher != nil {
			dispatcher.HandleMessage(author, text)
		}
	})
	hub := router.Hub()
	go hub.Run()

	br := bridge.New(hub, rcon, hist, clk)
	commands := bridge.NewCommands(cfg, files, machine, rcon, prober, clk)
	dispatcher = bridge.NewDispatcher(br, commands, hub)
	announcer := bridge.NewAnnouncer(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := tail.New(cfg.Log.Path, cfg.Log.PollInterval, clk)
	if err := tailer.Start(ctx); err != nil {
		log.Fatalf("Failed to attach to log %s: %v", cfg.Log.Path, err)
	}
	go br.Pump(ctx, tailer.Lines())
	log.Printf("Tailing %s every %v", cfg.Log.Path, cfg.Log.PollInterval)

	monitor := lifecycle.NewMonitor(lifecycle.Options{
		LogsDir:       cfg.Log.Dir,
		Executable:    cfg.Minecraft.Executable,
		CheckInterval: cfg.Minecraft.CheckInterval,
		Location:      cfg.Location(),
	}, machine, rcon, prober, files, hist, clk, announcer)
	monitor.Run(ctx)
	log.Printf("Lifecycle monitor started, checking every %v", cfg.Minecraft.CheckInterval)

	addr := fmt.Sprintf("%s:%d", cfg.API.ListenAddr, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP API listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	case s := <-monitor.Signals():
		switch s {
		case lifecycle.SignalRestart:
			log.Printf("Restart requested, exiting for the process manager to relaunch")
			exitCode = restartExitCode
		default:
			log.Printf("Server gone, shutting down")
		}
	}

	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	tailer.Stop()
	cancel()
	monitor.Wait()
	log.Println("Shutdown complete")
	os.Exit(exitCode)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	prober := mc.NewProber(cfg.Minecraft.Host, cfg.Minecraft.Port, cfg.Rcon.Timeout)
	status := prober.Query()
	if !status.Online {
		fmt.Printf("%s:%d is offline", cfg.Minecraft.Host, cfg.Minecraft.Port)
		if status.Err != nil {
			fmt.Printf(" (%v)", status.Err)
		}
		fmt.Println()
		os.Exit(1)
	}

	fmt.Printf("%s:%d is online\n", cfg.Minecraft.Host, cfg.Minecraft.Port)
	fmt.Printf("  MOTD:    %s\n", status.MOTD)
	fmt.Printf("  Players: %d/%d\n", status.PlayersOnline, status.PlayersMax)
	for _, name := range status.Sample {
		fmt.Printf("    - %s\n", name)
	}
	fmt.Printf("  Latency: %dms\n", status.LatencyMs)
}

func cmdAdmin(args []string) {
	if len(args) < 1 || args[0] != "passwd" {
		fmt.Fprintln(os.Stderr, "Usage: wanderbridge admin passwd")
		os.Exit(1)
	}

	fmt.Print("New admin password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}

	if string(password) != string(confirm) {
		fmt.Fprintln(os.Stderr, "Passwords do not match")
		os.Exit(1)
	}
	if len(password) == 0 {
		fmt.Fprintln(os.Stderr, "Password must not be empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Add to your config under api:")
	fmt.Printf("  admin_password_hash: %q\n", hash)
}
