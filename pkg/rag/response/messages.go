package response

// Error codes carried by a failed chat response.
const (
	CodeRateLimited        = "rate_limited"
	CodeInvalidRequest     = "invalid_request"
	CodeSessionUnavailable = "session_unavailable"
	CodeModelRateLimited   = "model_rate_limited"
	CodeModelUnavailable   = "model_unavailable"
	CodeInternal           = "internal_error"
)

// MessageFor returns the user facing text for an error code. Unknown codes
// get the generic apology.
func (a *Analyzer) MessageFor(code string) string {
	m := a.lx.Messages
	var text string
	switch code {
	case CodeRateLimited:
		text = m.RateLimited
	case CodeInvalidRequest:
		text = m.InvalidRequest
	case CodeSessionUnavailable:
		text = m.SessionUnavailable
	case CodeModelRateLimited:
		text = m.ModelRateLimited
	case CodeModelUnavailable:
		text = m.ModelUnavailable
	}
	if text == "" {
		text = m.Apology
	}
	return text
}
