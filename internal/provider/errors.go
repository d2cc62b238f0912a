package provider

import "fmt"

// Kind discriminates adapter failure classes. Every failure is local to one
// candidate attempt; the router recovers by moving to the next candidate.
type Kind int

const (
	// KindAuth means the credential is missing or a placeholder.
	KindAuth Kind = iota
	// KindTransport means the network call itself failed.
	KindTransport
	// KindRemote means the provider answered with a non-2xx status.
	KindRemote
	// KindParse means the response body could not be decoded.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every adapter.
type Error struct {
	Provider string
	Kind     Kind
	Status   int // remote HTTP status, when Kind == KindRemote
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindRemote && e.Status != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func authErr(provider string, format string, args ...interface{}) *Error {
	return &Error{Provider: provider, Kind: KindAuth, Err: fmt.Errorf(format, args...)}
}

func transportErr(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransport, Err: err}
}

func remoteErr(provider string, status int, body string) *Error {
	return &Error{Provider: provider, Kind: KindRemote, Status: status, Err: fmt.Errorf("%s", body)}
}

func parseErr(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindParse, Err: err}
}
