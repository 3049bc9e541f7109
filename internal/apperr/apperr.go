// Package apperr defines the error taxonomy shared by the pipeline packages.
package apperr

import (
	"errors"
	"fmt"
)

// GeometryError reports malformed or degenerate input rejected before any network call:
// polygons with too few points, zero-extent bounds, invalid palettes, bad date ranges.
type GeometryError struct {
	Op     string
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Geometry builds a GeometryError with a formatted reason.
func Geometry(op, format string, args ...any) error {
	return &GeometryError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// AuthError reports a failed client-credentials exchange.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
	default:
		return "token exchange failed: " + e.Body
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError reports a non-success response, or an unusable body, from the
// statistics or tile endpoints.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsGeometry reports whether err carries a GeometryError.
func IsGeometry(err error) bool {
	var ge *GeometryError
	return errors.As(err, &ge)
}

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsUpstream reports whether err carries an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// maxBody caps response bodies carried inside errors.
const maxBody = 512

// TruncateBody shortens an upstream body for inclusion in an error.
func TruncateBody(b []byte) string {
	if len(b) > maxBody {
		return string(b[:maxBody]) + "..."
	}
	return string(b)
}
