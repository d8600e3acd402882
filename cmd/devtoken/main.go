// Command devtoken mints a staff access token signed with JWT_SECRET, for
// local development and for operators without an identity provider.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/config"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/utils"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		role   string
		ttlMin int
		header bool
	)
	cmd := &cobra.Command{
		Use:   "devtoken <principal>",
		Short: "Mint a staff access token",
		Long: `Mint an HS256 access token for a staff principal, signed with JWT_SECRET
(read from the environment or a local .env file).

The principal is usually the staff member's email address; it is recorded
as updated_by on every change made with the token.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := config.LoadJWTSecret()
			if err != nil {
				return err
			}
			tok, err := utils.NewAccessToken(secret, args[0], role, ttlMin)
			if err != nil {
				return err
			}
			if header {
				_, err = fmt.Fprintf(out, "Authorization: Bearer %s\n", tok.Token)
				return err
			}
			_, err = fmt.Fprintln(out, tok.Token)
			if err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", "STAFF", "role claim")
	cmd.Flags().IntVar(&ttlMin, "ttl", 60, "lifetime in minutes")
	cmd.Flags().BoolVar(&header, "header", false, "print a ready-to-use Authorization header")
	return cmd
}
