package slack

import (
	"errors"
	"net/http"

	"otogi-helpnav/pkg/otogi"

	"github.com/slack-go/slack"
)

func mapSlackOutboundError(
	operation otogi.OutboundOperation,
	sink otogi.EventSink,
	err error,
) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, otogi.ErrInvalidOutboundRequest) {
		return err
	}

	outboundErr := &otogi.OutboundError{
		Operation: operation,
		Kind:      otogi.OutboundErrorKindUnknown,
		Platform:  sink.Platform,
		SinkID:    sink.ID,
		Cause:     err,
	}

	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		outboundErr.Kind = otogi.OutboundErrorKindRateLimited
		outboundErr.RetryAfter = rateLimited.RetryAfter
		outboundErr.Code = http.StatusTooManyRequests

		return outboundErr
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		outboundErr.Type = apiErr.Err
		outboundErr.Kind = classifySlackAPIError(apiErr.Err)

		return outboundErr
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		outboundErr.Code = statusErr.Code
		outboundErr.Type = statusErr.Status
		outboundErr.Kind = classifySlackStatusCode(statusErr.Code)
	}

	return outboundErr
}

// classifySlackAPIError maps Web API `error` tokens onto retry classes.
func classifySlackAPIError(token string) otogi.OutboundErrorKind {
	switch token {
	case "ratelimited", "rate_limited":
		return otogi.OutboundErrorKindRateLimited
	case "internal_error", "fatal_error", "service_unavailable", "request_timeout":
		return otogi.OutboundErrorKindTemporary
	case "channel_not_found", "not_in_channel", "is_archived", "message_not_found",
		"cant_update_message", "cant_delete_message", "edit_window_closed", "msg_too_long",
		"invalid_blocks", "no_text", "restricted_action", "not_authed", "invalid_auth",
		"account_inactive", "missing_scope":
		return otogi.OutboundErrorKindPermanent
	default:
		return otogi.OutboundErrorKindUnknown
	}
}

func classifySlackStatusCode(code int) otogi.OutboundErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return otogi.OutboundErrorKindRateLimited
	case code >= http.StatusInternalServerError:
		return otogi.OutboundErrorKindTemporary
	case code >= http.StatusBadRequest:
		return otogi.OutboundErrorKindPermanent
	default:
		return otogi.OutboundErrorKindUnknown
	}
}
