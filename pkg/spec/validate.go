package spec

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionRe matches an optional range prefix, up to three numeric-or-x
// components, and an optional prerelease/build suffix.
var versionRe = regexp.MustCompile(`^(\^|~|>=|<=|>|<|==)?\s*(\d+|[xX])(?:\.(\d+|[xX]))?(?:\.(\d+|[xX]))?((?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)$`)

var commitSHARe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Validate checks one spec entry and returns its installer-ready reference.
// index is the entry's 0-based position in lexical name order and appears in
// error messages only.
//
// In strict mode only exact versions and allow-listed URLs are accepted. In
// non-strict mode range prefixes and partial versions pass through to the
// installer as written.
func Validate(index int, name, value string, strict bool) (Reference, error) {
	if name == "" || strings.ContainsAny(name, " \t\n\r") {
		return "", &InvalidNameError{Index: index, Name: name}
	}
	if value == "" || value == "*" {
		return "", &VagueVersionError{Index: index, Name: name, Value: value}
	}

	if m := versionRe.FindStringSubmatch(value); m != nil {
		return validateVersion(index, name, value, m, strict)
	}

	return validateURL(index, name, value)
}

// ValidateSpec validates every entry of the desired spec in ascending
// lexical name order and returns the normalized name-to-reference mapping.
// The first invalid entry aborts validation.
func ValidateSpec(s PluginSpec, strict bool) (map[string]Reference, error) {
	refs := make(map[string]Reference, len(s))
	for i, name := range s.Names() {
		ref, err := Validate(i, name, s[name], strict)
		if err != nil {
			return nil, err
		}
		refs[name] = ref
	}
	return refs, nil
}

func validateVersion(index int, name, value string, m []string, strict bool) (Reference, error) {
	prefix := m[1]
	parts := []string{m[2], m[3], m[4]}
	suffix := m[5]

	exact := prefix == "" && parts[1] != "" && parts[2] != "" && !hasWildcard(parts)
	if exact {
		if _, err := semver.StrictNewVersion(value); err != nil {
			return "", &MalformedSpecifierError{Index: index, Name: name, Value: value, Err: err}
		}
		return Reference(name + "@" + value), nil
	}

	if strict {
		return "", &VagueVersionError{
			Index:      index,
			Name:       name,
			Value:      value,
			Token:      prefix,
			Suggestion: suggestExact(parts, suffix),
		}
	}

	// Loose mode still requires the range to be well-formed. semver has no
	// "==" operator, so the prefix is dropped and the remainder must be an
	// exact version.
	constraint := value
	if prefix == "==" {
		constraint = strings.TrimSpace(strings.TrimPrefix(value, "=="))
	}
	if _, err := semver.NewConstraint(constraint); err != nil {
		return "", &MalformedSpecifierError{Index: index, Name: name, Value: value, Err: err}
	}
	return Reference(name + "@" + constraint), nil
}

func validateURL(index int, name, value string) (Reference, error) {
	u, err := url.Parse(value)
	if err != nil {
		return "", &MalformedSpecifierError{Index: index, Name: name, Value: value, Err: err}
	}
	if u.Scheme == "" {
		return "", &MalformedSpecifierError{Index: index, Name: name, Value: value, Err: errors.New("missing scheme")}
	}

	switch u.Scheme {
	case "github":
		if !commitSHARe.MatchString(u.Fragment) {
			return "", &UnpinnedGithubRefError{Index: index, Name: name, Fragment: u.Fragment}
		}
		return Reference(value), nil
	case "https", "s3":
		return Reference(value), nil
	default:
		return "", &UnsupportedProtocolError{Index: index, Name: name, Scheme: u.Scheme}
	}
}

func hasWildcard(parts []string) bool {
	for _, p := range parts {
		if p == "x" || p == "X" {
			return true
		}
	}
	return false
}

// suggestExact derives a concrete 1.2.3-shaped version from a range or
// partial specifier, for use in strict-mode error messages.
func suggestExact(parts []string, suffix string) string {
	out := make([]string, 3)
	for i, p := range parts {
		if p == "" || p == "x" || p == "X" {
			p = "0"
		}
		out[i] = p
	}
	return fmt.Sprintf("%s.%s.%s%s", out[0], out[1], out[2], suffix)
}
