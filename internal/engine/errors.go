package engine

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Error kinds. Match them with errors.Is; the concrete error is a *PoolError
// carrying network/operation/endpoint context.
var (
	ErrInvalidURL            = errors.New("invalid rpc url")
	ErrNoProvidersAvailable  = errors.New("no providers available")
	ErrAllProvidersUnhealthy = errors.New("all providers unhealthy")
	ErrOperationTimeout      = errors.New("operation timed out")
	ErrOperationFailed       = errors.New("operation failed")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrProviderUnreachable   = errors.New("provider unreachable")
	ErrUnsupportedNetwork    = errors.New("unsupported network")
	ErrManagerClosed         = errors.New("pool manager is shut down")
)

const authGuidance = "check the API key configuration (INFURA_API_KEY, ALCHEMY_API_KEY, QUICKNODE_API_KEY, CUSTOM_RPC_API_KEY or the explicit key)"

// PoolError is the error type returned by the pool.
type PoolError struct {
	Kind      error
	Network   string
	Operation string
	Endpoint  string // masked
	Attempts  int
	Err       error
}

func (e *PoolError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Operation != "" {
		fmt.Fprintf(&b, ": %s", e.Operation)
	}
	if e.Network != "" {
		fmt.Fprintf(&b, " on %s", e.Network)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " (endpoint %s)", e.Endpoint)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if errors.Is(e.Kind, ErrAuthenticationFailed) {
		b.WriteString("; " + authGuidance)
	}
	return b.String()
}

func (e *PoolError) Unwrap() error { return e.Err }

func (e *PoolError) Is(target error) bool { return target == e.Kind }

// isAuthError detects rejected credentials from the HTTP status of the
// JSON-RPC transport, falling back to message matching for transports that
// don't surface rpc.HTTPError.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401 unauthorized") ||
		strings.Contains(msg, "403 forbidden") ||
		strings.Contains(msg, "invalid api key")
}

// redactedError hides authenticated URLs in the message of an upstream error
// while keeping the chain intact for errors.Is/As.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

// redactURL replaces every occurrence of rawURL (and of the URL recorded in a
// wrapped *url.Error) in err's message with its masked form.
func redactURL(err error, rawURL string) error {
	if err == nil {
		return nil
	}
	secrets := []string{strings.TrimSpace(rawURL)}
	var ue *url.Error
	if errors.As(err, &ue) {
		secrets = append(secrets, ue.URL)
	}

	msg := err.Error()
	redacted := msg
	for _, s := range secrets {
		if s == "" {
			continue
		}
		redacted = strings.ReplaceAll(redacted, s, MaskURL(s))
	}
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}
