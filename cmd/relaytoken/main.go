// relaytoken prints a bearer token for the chain-event relay that calls
// POST /blockchainWebhook. The signing secret is read from WEBHOOK_JWT_SECRET
// unless --secret is given.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nftix/ticket-lifecycle/internal/auth"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	var (
		secret  string
		ttl     time.Duration
		subject string
		verbose bool
	)
	flagSet := pflag.NewFlagSet("relaytoken", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&secret, "secret", "", "HS256 signing secret (default: $WEBHOOK_JWT_SECRET)")
	flagSet.DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	flagSet.StringVar(&subject, "subject", auth.RelaySubject, "token subject")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "print the expiry alongside the token")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if secret == "" {
		secret = getenv("WEBHOOK_JWT_SECRET")
	}
	if secret == "" {
		return errors.New("no signing secret: set WEBHOOK_JWT_SECRET or pass --secret")
	}
	minutes := int(ttl / time.Minute)
	if minutes <= 0 {
		return fmt.Errorf("--ttl must be at least one minute, got %s", ttl)
	}

	token, expiresAt, err := auth.NewTokenManager(secret, minutes).GenerateToken(subject)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(out, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(out, token)
	return nil
}
