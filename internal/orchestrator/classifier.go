package orchestrator

// #region imports
import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
)

// #endregion

// #region fatal-types

// fatalAPITypes are service error types that retrying cannot fix.
// billing_error is how quota exhaustion is reported.
var fatalAPITypes = map[string]FailureCode{
	"authentication_error": CodeAuthentication,
	"permission_error":     CodePermission,
	"rate_limit_error":     CodeRateLimit,
	"overloaded_error":     CodeOverloaded,
	"billing_error":        CodeBilling,
}

// #endregion

// #region classify

// Classify maps a raw exchange to an outcome. It does not count consecutive
// failures; RetryEngine.Observe does that.
func Classify(ex codec.Exchange) Outcome {
	base := Outcome{Status: ex.Status, Latency: ex.Latency}

	if ex.Err != nil {
		if apiErr, ok := codec.DecodeError(ex.Body); ok && apiErr.Type == "authentication_error" {
			return withFailure(base, OutcomeFatal, CodeAuthentication, apiErr.Error())
		}
		return withFailure(base, OutcomeRecoverable, CodeNetwork, ex.Err.Error())
	}

	if apiErr, ok := codec.DecodeError(ex.Body); ok {
		if code, fatal := fatalAPITypes[apiErr.Type]; fatal {
			return withFailure(base, OutcomeFatal, code, apiErr.Error())
		}
		return withFailure(base, OutcomeRecoverable, CodeAPIError, apiErr.Error())
	}

	if ex.Status < 200 || ex.Status >= 300 {
		return withFailure(base, OutcomeRecoverable, CodeHTTPStatus, fmt.Sprintf("HTTP %d", ex.Status))
	}

	reply, err := codec.DecodeReply(ex.Body)
	if err != nil {
		return withFailure(base, OutcomeRecoverable, CodeParseError, err.Error())
	}
	base.Kind = OutcomeSuccess
	base.Reply = reply
	return base
}

// timeoutOutcome is what a request gets when its timer fires first.
func timeoutOutcome(after time.Duration) Outcome {
	return Outcome{Kind: OutcomeRecoverable, Code: CodeTimeout, Detail: "request timed out after " + after.String()}
}

func withFailure(o Outcome, kind OutcomeKind, code FailureCode, detail string) Outcome {
	o.Kind = kind
	o.Code = code
	o.Detail = detail
	return o
}

// #endregion
