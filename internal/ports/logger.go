package ports

import "github.com/bft-labs/serialmux/pkg/log"

// Logger is the structured logger the application layer writes to.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field
