package lookup

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultSecretNamePattern matches exactly the Azure Key Vault secret
	// identifier alphabet.
	DefaultSecretNamePattern = "^[0-9a-zA-Z-]+$"

	// DefaultRefreshInterval is how long a cached snapshot stays fresh when no
	// interval is configured.
	DefaultRefreshInterval = 180000 * time.Millisecond
)

// Store is the remote secret store client a Strategy reads from.
//
// Implementations must be thread-safe.
type Store interface {
	// Name identifies the store in logs, errors and metrics.
	Name() string

	// ListSecretNames returns every secret identifier currently present in
	// the store. Paged APIs must be iterated to the end.
	ListSecretNames(ctx context.Context) ([]string, error)

	// GetSecret fetches the current value of one secret in a single round
	// trip. Unknown identifiers are reported with a NotFoundError.
	GetSecret(ctx context.Context, name string) (string, error)
}

// Strategy is a secret-backed property source.
//
// Example:
//
//	names, err := s.PropertyNames(ctx)
//	if err != nil {
//	    return err
//	}
//	res, err := s.Value(ctx, "database.url")
//	if err != nil {
//	    return err
//	}
//	if v, ok := res.Get(); ok {
//	    fmt.Println(v)
//	}
type Strategy interface {
	// PropertyNames returns the secret identifiers known to the source as a
	// sorted slice with no duplicates. The slice belongs to the caller.
	PropertyNames(ctx context.Context) ([]string, error)

	// Properties returns every identifier with its value. The map belongs to
	// the caller; mutating it never affects the source.
	Properties(ctx context.Context) (map[string]string, error)

	// Value looks up a single property. A missing value is reported through
	// the Result, never as an error. An error means the source itself could
	// not be brought up to date.
	Value(ctx context.Context, name string) (Result, error)
}

// Outcome classifies a single lookup.
type Outcome int

const (
	// Found means Result.Value holds the secret value.
	Found Outcome = iota
	// NotFound means no secret matched the requested name.
	NotFound
	// Filtered means the name was rejected before any remote call because it
	// can never be a valid secret identifier.
	Filtered
	// Failed means the store call failed and the failure was converted into
	// absence. Result.Err holds the cause.
	Failed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Filtered:
		return "filtered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Strategy.Value.
type Result struct {
	Outcome Outcome

	// Value is set only when Outcome is Found.
	Value string

	// Key is the secret identifier that produced Value. It differs from the
	// requested name when the lookup matched through ToSecretName.
	Key string

	// Err is the swallowed store failure when Outcome is Failed.
	Err error
}

// Get collapses the Result to "value or absent".
func (r Result) Get() (string, bool) {
	if r.Outcome != Found {
		return "", false
	}
	return r.Value, true
}

// FoundResult builds a Found result.
func FoundResult(key, value string) Result {
	return Result{Outcome: Found, Key: key, Value: value}
}

// NotFoundResult builds a NotFound result.
func NotFoundResult() Result {
	return Result{Outcome: NotFound}
}

// NotFoundError indicates that a secret identifier does not exist in a store.
type NotFoundError struct {
	// Store is the name of the store that was queried.
	Store string

	// Key is the identifier that could not be found.
	Key string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Store
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
