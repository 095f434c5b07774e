// Package exitcode lists the process exit codes of the claimcheck CLI.
package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	CopyError       = 4
	PromoteError    = 5
	PartialSuccess  = 6
	// ClaimRejected is returned by the offline adjudicate command when the
	// engine reports a hard failure or an invalid claim.
	ClaimRejected = 7
	ServerError   = 8
)
