package cdx

import (
	"fmt"
	"net/http"
	"strconv"
)

// StatusCode is the statuscode column. Only the codes seen in index results
// are representable.
type StatusCode uint8

const (
	// StatusEmpty is the literal "-", which usually stands for a 200 response.
	StatusEmpty StatusCode = iota
	StatusOK
	StatusMovedPermanently
	StatusFound
	StatusSeeOther
	StatusTemporaryRedirect
	StatusBadRequest
	StatusUnauthorized
	StatusForbidden
	StatusNotFound
	StatusUpgradeRequired
	StatusTooManyRequests
	StatusRequestHeaderFieldsTooLarge
	StatusInternalServerError
	StatusBadGateway
	StatusServiceUnavailable
	StatusGatewayTimeout
	StatusCloudflareUnknownError
	StatusCloudflareWebServerDown
	StatusCloudflareTimeout
)

var statusValues = [...]uint16{
	StatusEmpty:                       0,
	StatusOK:                          200,
	StatusMovedPermanently:            301,
	StatusFound:                       302,
	StatusSeeOther:                    303,
	StatusTemporaryRedirect:           307,
	StatusBadRequest:                  400,
	StatusUnauthorized:                401,
	StatusForbidden:                   403,
	StatusNotFound:                    404,
	StatusUpgradeRequired:             426,
	StatusTooManyRequests:             429,
	StatusRequestHeaderFieldsTooLarge: 431,
	StatusInternalServerError:         500,
	StatusBadGateway:                  502,
	StatusServiceUnavailable:          503,
	StatusGatewayTimeout:              504,
	StatusCloudflareUnknownError:      520,
	StatusCloudflareWebServerDown:     521,
	StatusCloudflareTimeout:           524,
}

// StatusCodes lists every representable code in order.
func StatusCodes() []StatusCode {
	codes := make([]StatusCode, len(statusValues))
	for i := range codes {
		codes[i] = StatusCode(i)
	}
	return codes
}

// StatusCodeError reports a status code outside the known set.
type StatusCodeError struct {
	Text string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("unsupported status code %q", e.Text)
}

// Value returns the numeric code, 0 for StatusEmpty.
func (c StatusCode) Value() uint16 {
	return statusValues[c]
}

// HTTP returns the logical HTTP status: StatusEmpty maps to 200 and the
// Cloudflare origin errors to 500.
func (c StatusCode) HTTP() int {
	switch c {
	case StatusEmpty:
		return http.StatusOK
	case StatusCloudflareUnknownError, StatusCloudflareWebServerDown, StatusCloudflareTimeout:
		return http.StatusInternalServerError
	default:
		return int(statusValues[c])
	}
}

// String returns the column text.
func (c StatusCode) String() string {
	if c == StatusEmpty {
		return "-"
	}
	return strconv.Itoa(int(statusValues[c]))
}

// StatusCodeFromValue maps a numeric code back; 0 is StatusEmpty.
func StatusCodeFromValue(v uint16) (StatusCode, error) {
	for i, value := range statusValues {
		if value == v {
			return StatusCode(i), nil
		}
	}
	return 0, &StatusCodeError{Text: strconv.Itoa(int(v))}
}

// ParseStatusCode decodes the column text.
func ParseStatusCode(s string) (StatusCode, error) {
	if s == "-" {
		return StatusEmpty, nil
	}
	if len(s) != 3 {
		return 0, &StatusCodeError{Text: s}
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return 0, &StatusCodeError{Text: s}
	}
	c, err := StatusCodeFromValue(uint16(v))
	if err != nil {
		return 0, &StatusCodeError{Text: s}
	}
	return c, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c StatusCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *StatusCode) UnmarshalText(text []byte) error {
	parsed, err := ParseStatusCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
