package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/kbukum/apiclient/errors"
	"github.com/kbukum/apiclient/httpclient/rest"
	"github.com/kbukum/apiclient/observability"
)

type command func(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"login":  cmdLogin,
	"call":   cmdCall,
	"logout": cmdLogout,
	"status": cmdStatus,
}

func cmdLogin(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(stderr, "Error: -username and -password are required")
		return 2
	}

	claims, err := a.client.Login(ctx, a.cfg.Auth.LoginPath, map[string]string{
		"username": *username,
		"password": *password,
	})
	if err != nil {
		return reportError(stderr, err)
	}

	fmt.Fprintf(stdout, "Logged in as %s", claims.Subject)
	if claims.TenantID != "" {
		fmt.Fprintf(stdout, " (tenant %s)", claims.TenantID)
	}
	fmt.Fprintln(stdout)
	return 0
}

func cmdCall(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	method := fs.String("method", http.MethodGet, "HTTP method")
	data := fs.String("data", "", "JSON request body")
	public := fs.Bool("public", false, "send without credentials")
	noRetry := fs.Bool("no-retry", false, "disable retries")
	timeout := fs.Duration("timeout", 0, "per-attempt timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: call takes exactly one path")
		return 2
	}

	call := rest.Call{
		Method: strings.ToUpper(*method),
		Path:   fs.Arg(0),
		Options: rest.Options{
			SkipAuth: *public,
			NoRetry:  *noRetry,
			Timeout:  *timeout,
		},
	}
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			fmt.Fprintln(stderr, "Error: -data is not valid JSON")
			return 2
		}
		call.Body = json.RawMessage(*data)
	}

	resp, err := a.client.Do(ctx, call)
	if err != nil {
		return reportError(stderr, err)
	}
	stdout.Write(resp.Body)
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		fmt.Fprintln(stdout)
	}
	return 0
}

func cmdLogout(ctx context.Context, a *app, _ []string, stdout, stderr io.Writer) int {
	if err := a.client.Logout(ctx); err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintln(stdout, "Logged out")
	return 0
}

func cmdStatus(ctx context.Context, a *app, _ []string, stdout, _ io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health := observability.NewServiceHealth(a.cfg.Name, a.cfg.Version).Check(ctx, a.checkers()...)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(health)
	if health.Status == observability.HealthStatusDown {
		return 1
	}
	return 0
}

// reportError prints the normalized error as JSON and returns exit code 1.
func reportError(w io.Writer, err error) int {
	e, ok := apierrors.From(err)
	if !ok {
		e = apierrors.Unknown(err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(e)
	return 1
}
