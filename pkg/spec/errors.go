package spec

import "fmt"

// placeholderSHA is shown in unpinned-github errors so the fix is obvious.
const placeholderSHA = "0123456789abcdef0123456789abcdef01234567"

// InvalidNameError reports a plugin name that is empty or contains whitespace.
type InvalidNameError struct {
	Index int
	Name  string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("entry #%d: invalid plugin name %q: must be non-empty and contain no whitespace", e.Index, e.Name)
}

// VagueVersionError reports a version specifier too loose to cache or audit:
// an empty value, a bare "*", or (in strict mode) a range or partial version.
type VagueVersionError struct {
	Index int
	Name  string
	Value string
	// Token is the offending range token ("^", "~", ">=", ...) or "" when
	// the value was rejected for missing components.
	Token string
	// Suggestion is a concrete 1.2.3-shaped replacement, when one can be
	// derived from the value.
	Suggestion string
}

func (e *VagueVersionError) Error() string {
	msg := fmt.Sprintf("entry #%d (%s): version %q is too vague to install reproducibly", e.Index, e.Name, e.Value)
	if e.Token != "" {
		msg += fmt.Sprintf(": range token %q is not allowed in strict mode", e.Token)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; pin an exact version instead, e.g. %q", e.Suggestion)
	}
	return msg
}

// UnpinnedGithubRefError reports a github: specifier whose fragment is not a
// full 40-character commit SHA.
type UnpinnedGithubRefError struct {
	Index    int
	Name     string
	Fragment string
}

func (e *UnpinnedGithubRefError) Error() string {
	return fmt.Sprintf("entry #%d (%s): github ref %q is not pinned to a commit: the fragment must be a full 40-character SHA, e.g. #%s",
		e.Index, e.Name, "#"+e.Fragment, placeholderSHA)
}

// UnsupportedProtocolError reports a URL specifier with a scheme outside the
// allow list.
type UnsupportedProtocolError struct {
	Index  int
	Name   string
	Scheme string
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("entry #%d (%s): unsupported protocol %q: supported schemes are https:, s3:, and github:", e.Index, e.Name, e.Scheme)
}

// MalformedSpecifierError reports a value that parses neither as a version
// nor as a URL.
type MalformedSpecifierError struct {
	Index int
	Name  string
	Value string
	Err   error
}

func (e *MalformedSpecifierError) Error() string {
	return fmt.Sprintf("entry #%d (%s): cannot parse specifier %q: %v", e.Index, e.Name, e.Value, e.Err)
}

func (e *MalformedSpecifierError) Unwrap() error { return e.Err }
