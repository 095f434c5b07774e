// claimcheck prevalidates health-insurance claims against a rule catalog
// and the insurer's policy, and loads catalog versions into Postgres.
package main

import (
	"os"

	"github.com/gyeh/claimcheck/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
