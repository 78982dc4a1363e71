package token

import (
	"fmt"
	"io"
	"time"

	"geotrack/internal/cli"
)

// Run mints a client token and writes it with its claims to out.
func Run(out io.Writer, secret, clientID, role string, ttl time.Duration) error {
	token, claims, err := cli.MintBridgeToken(secret, clientID, role, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "TOKEN:")
	fmt.Fprintln(out, token)
	fmt.Fprintln(out, "\nCLAIMS:")
	fmt.Fprintf(out, "  sub:  %s\n", claims.Subject)
	fmt.Fprintf(out, "  role: %s\n", claims.Role)
	fmt.Fprintf(out, "  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	return nil
}
