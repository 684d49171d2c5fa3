package stylegen

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// The classifier matches human-readable provider messages. None of these
// formats are contractual: an upstream wording change silently moves a
// failure into ClassSoftFailure. Keep every heuristic in this file.
var (
	zeroQuotaPattern    = regexp.MustCompile(`(?i)limit:\s*0(?:[^0-9.]|$)`)
	rateOrQuotaPattern  = regexp.MustCompile(`(?i)quota exceeded|too many requests|resource.?exhausted`)
	verificationPattern = regexp.MustCompile(`(?i)must be verified to use the model`)
	requiredModelRegexp = regexp.MustCompile(`(?i)value must be ['"]?([a-z0-9][a-z0-9._\-]*)['"]?`)
	toolParamPattern    = regexp.MustCompile(`tools\[0\]\.([a-zA-Z0-9_]+)`)
)

const toolParamPrefix = "tools[0]."

// Classify maps a raw HTTP status and response body or error message onto an
// ErrorClass. A zero status means the failure carried no HTTP status (for
// example an SDK error); only the message is considered then.
func Classify(status int, message string) ErrorClass {
	switch status {
	case http.StatusTooManyRequests:
		if IsZeroQuota(message) {
			return ClassQuotaExhausted
		}
		return ClassRateLimited
	case http.StatusBadRequest:
		return ClassUnsupportedParameter
	case http.StatusUnauthorized:
		return ClassAuthFailure
	case http.StatusForbidden:
		if verificationPattern.MatchString(message) {
			return ClassOrgVerificationRequired
		}
		return ClassSoftFailure
	case 0:
		if IsRateOrQuota(message) {
			if IsZeroQuota(message) {
				return ClassQuotaExhausted
			}
			return ClassRateLimited
		}
		return ClassSoftFailure
	default:
		return ClassSoftFailure
	}
}

// IsZeroQuota reports whether message carries the zero-quota signature
// ("limit: 0"), which marks a project-wide quota ceiling of zero rather than
// a transient per-key rate limit.
func IsZeroQuota(message string) bool {
	return zeroQuotaPattern.MatchString(message)
}

// IsRateOrQuota reports whether message reads like a rate or quota failure.
func IsRateOrQuota(message string) bool {
	return rateOrQuotaPattern.MatchString(message)
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   any    `json:"param"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// BadParameter extracts the structured bad-parameter identifier
// ({"error":{"param":"..."}}) from a 400 response body.
func BadParameter(body string) (string, bool) {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return "", false
	}
	param, ok := env.Error.Param.(string)
	if !ok || strings.TrimSpace(param) == "" {
		return "", false
	}
	return strings.TrimSpace(param), true
}

// ToolParameter identifies the image-generation tool field a 400 response
// rejected. The structured param is preferred; a "tools[0].<field>" path in
// the message is the fallback. The returned name has the tool prefix removed.
func ToolParameter(body string) (string, bool) {
	param, ok := BadParameter(body)
	if !ok {
		m := toolParamPattern.FindStringSubmatch(body)
		if m == nil {
			return "", false
		}
		param = m[1]
	}
	param = strings.TrimPrefix(param, toolParamPrefix)
	if param == "" {
		return "", false
	}
	return param, true
}

// RequiredModel detects a 400 where the model field itself was rejected with
// a message demanding one fixed model value, and returns that value.
func RequiredModel(body string) (string, bool) {
	if param, ok := BadParameter(body); ok && param != "model" {
		return "", false
	}
	m := requiredModelRegexp.FindStringSubmatch(errorMessage(body))
	if m == nil {
		return "", false
	}
	return strings.ToLower(strings.TrimRight(m[1], ".")), true
}

// errorMessage returns the structured error message when body is an error
// envelope, or the body itself otherwise.
func errorMessage(body string) string {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return body
}
