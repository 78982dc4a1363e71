package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	controlclient "geotrack/cmd/control_client"
	"geotrack/cmd/token"
	trackerservice "geotrack/cmd/tracker_service"
	"geotrack/internal/cli"
	"geotrack/internal/general/config"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, modeArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the component specified by the mode flag
	switch mode {

	case cli.ModeTracker:
		fs := flag.NewFlagSet(cli.ModeTracker, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.yaml", "Path to the YAML config file")
		maxConc := fs.Int("max-concurrent", 50, "Maximum number of concurrent HTTP requests to process")
		cli.AttachUsage(fs, cli.ModeTracker)

		parseOrExit(fs, modeArgs)
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := trackerservice.Run(ctx, *configPath, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeControl:
		fs := flag.NewFlagSet(cli.ModeControl, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.yaml", "Path to the YAML config file (token secret, broker, port)")
		transport := fs.String("transport", controlclient.TransportHTTP, "Command channel transport: http | ws | amqp")
		method := fs.String("method", "", "Method to invoke, e.g. startService or stopService")
		addr := fs.String("addr", "", "Tracker host:port (default localhost:<services.tracker_service>)")
		tok := fs.String("token", "", "Bearer token (minted from jwt.secret_key when empty)")
		timeout := fs.Duration("timeout", 15*time.Second, "Overall call timeout")
		cli.AttachUsage(fs, cli.ModeControl)

		parseOrExit(fs, modeArgs)
		if *method == "" {
			fmt.Fprintln(os.Stderr, "Error: --method is required")
			fs.Usage()
			os.Exit(2)
		}
		err := controlclient.Run(ctx, controlclient.Options{
			ConfigPath: *configPath,
			Transport:  *transport,
			Method:     *method,
			Addr:       *addr,
			Token:      *tok,
			Timeout:    *timeout,
		}, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			if errors.Is(err, controlclient.ErrMethodFailed) {
				os.Exit(3)
			}
			os.Exit(1)
		}

	case cli.ModeToken:
		fs := flag.NewFlagSet(cli.ModeToken, flag.ContinueOnError)
		configPath := fs.String("config", "", "Read jwt.secret_key from this config file when --secret is empty")
		clientID := fs.String("client-id", "", "Client identifier (subject)")
		role := fs.String("role", "CONTROLLER", "Client role: CONTROLLER | OBSERVER")
		secret := fs.String("secret", "", "JWT HMAC secret (HS256)")
		ttl := fs.Duration("ttl", 2*time.Hour, "Token lifetime")
		cli.AttachUsage(fs, cli.ModeToken)

		parseOrExit(fs, modeArgs)
		if *secret == "" && *configPath != "" {
			cfg, err := config.LoadFromFile(*configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			*secret = cfg.JWT.SecretKey
		}
		if *clientID == "" || *secret == "" {
			fmt.Fprintln(os.Stderr, "Error: --client-id and one of --secret or --config are required")
			fs.Usage()
			os.Exit(2)
		}
		if err := token.Run(os.Stdout, *secret, *clientID, *role, *ttl); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}
