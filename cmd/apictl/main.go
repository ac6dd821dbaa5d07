// Command apictl is a command-line client for the API.
//
// Commands:
//
//	login    Exchange a username and password for a credential pair
//	call     Send an authenticated request and print the response body
//	logout   Discard the stored credential pair
//	status   Report session and backend health as JSON
//
// Configuration is read from config.yml and .env, taken from the -config and
// -env flags or else from the working directory, then the apictl directory
// under the user config dir. APICLIENT_* variables override both.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/apiclient/config"
	"github.com/kbukum/apiclient/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("apictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to config.yml")
	envFile := fs.String("env", "", "path to .env file")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "apictl %s\n", version.Get())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}

	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return 2
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := config.Load("apictl", opts...)
	if err != nil {
		fmt.Fprintf(stderr, "apictl: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "apictl: %v\n", err)
		return 1
	}
	defer a.close(context.WithoutCancel(ctx))

	return handler(ctx, a, cmdArgs, stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "apictl "+version.Get().Short())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  apictl [-config file] [-env file] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  login -username <name> -password <secret>")
	fmt.Fprintln(w, "  call [-method GET] [-data json] [-public] [-no-retry] [-timeout 10s] <path>")
	fmt.Fprintln(w, "  logout")
	fmt.Fprintln(w, "  status")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without -config/-env, config.yml and .env are read from the working")
	fmt.Fprintln(w, "directory, then from the apictl directory under the user config dir.")
	fmt.Fprintln(w, "  version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  APICLIENT_HTTP_BASE_URL              API base URL (required)")
	fmt.Fprintln(w, "  APICLIENT_CREDENTIALS_BACKEND        memory, file or redis (default: file)")
	fmt.Fprintln(w, "  APICLIENT_CREDENTIALS_ENCRYPTION_KEY seals the stored pair at rest")
	fmt.Fprintln(w, "  APICLIENT_CREDENTIALS_REDIS_ADDR     redis address for the redis backend")
}
