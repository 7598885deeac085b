package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/middleware"
)

const passwordEnv = "GOAUTHCLIENT_PASSWORD"

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func passwordFrom(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnv)
}

func cmdLogin(ctx context.Context, a *app, args []string) int {
	fs := newFlagSet(a, "login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (default $"+passwordEnv+")")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	pw := passwordFrom(*password)
	if strings.TrimSpace(*username) == "" || pw == "" {
		fmt.Fprintln(a.stderr, "login: -u and a password are required")
		return exitUsage
	}

	pair, err := a.manager.Login(ctx, *username, pw)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "logged in as %s\n", subjectOf(pair.AccessToken, *username))
	return exitOK
}

func cmdLogout(ctx context.Context, a *app, _ []string) int {
	if err := a.manager.Logout(ctx); err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.stdout, "logged out")
	return exitOK
}

func cmdStatus(ctx context.Context, a *app, _ []string) int {
	state, err := a.manager.Restore(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("restore reported an error")
	}
	if !state.Authenticated() {
		fmt.Fprintln(a.stdout, state.Kind.String())
		return exitUnauthenticated
	}

	fmt.Fprintf(a.stdout, "%s as %s\n", state.Kind, subjectOf(state.Pair.AccessToken, "unknown"))
	if exp, err := jwt.DecodeExpiry(state.Pair.AccessToken); err == nil {
		fmt.Fprintf(a.stdout, "access token expires %s\n", exp.Local().Format(time.RFC3339))
	}
	if exp, err := jwt.DecodeExpiry(state.Pair.RefreshToken); err == nil {
		fmt.Fprintf(a.stdout, "refresh token expires %s\n", exp.Local().Format(time.RFC3339))
	}
	return exitOK
}

func cmdToken(ctx context.Context, a *app, _ []string) int {
	if _, err := a.manager.Restore(ctx); err != nil {
		return a.fail(err)
	}
	token, err := a.manager.EnsureFreshAccessToken(ctx)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.stdout, token)
	return exitOK
}

func cmdRegister(ctx context.Context, a *app, args []string) int {
	fs := newFlagSet(a, "register")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	password := fs.String("p", "", "password (default $"+passwordEnv+")")
	role := fs.String("role", "", "account role")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	req := goAuthClient.RegisterRequest{
		Username: strings.TrimSpace(*username),
		Email:    strings.TrimSpace(*email),
		Password: passwordFrom(*password),
		Role:     strings.TrimSpace(*role),
	}
	if req.Username == "" || req.Password == "" {
		fmt.Fprintln(a.stderr, "register: -u and a password are required")
		return exitUsage
	}

	if err := a.manager.Register(ctx, req); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "registered %s; run login to start a session\n", req.Username)
	return exitOK
}

func cmdGet(ctx context.Context, a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "usage: goauthclient get <url>")
		return exitUsage
	}
	if _, err := a.manager.Restore(ctx); err != nil {
		return a.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
	if err != nil {
		fmt.Fprintf(a.stderr, "get: %v\n", err)
		return exitUsage
	}
	client := middleware.NewClient(a.manager, nil)
	client.Timeout = a.cfg.Server.Timeout.Duration

	resp, err := client.Do(req)
	if err != nil {
		return a.fail(err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(a.stdout, resp.Body); err != nil {
		return a.fail(err)
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(a.stderr, "get: %s\n", resp.Status)
		return exitError
	}
	return exitOK
}

func subjectOf(token, fallback string) string {
	claims, err := jwt.Decode(token)
	if err != nil || claims.Subject == "" {
		return fallback
	}
	return claims.Subject
}
