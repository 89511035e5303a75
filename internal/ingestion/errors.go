package ingestion

import "errors"

var (
	// ErrParse marks content that does not conform to the tabular input
	// format. A parse failure is terminal for the file.
	ErrParse = errors.New("parse failure")
	// ErrTransfer marks object storage failures. Transfers are retried.
	ErrTransfer = errors.New("transfer failure")
)
