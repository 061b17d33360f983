package telegram

import (
	"errors"
	"strings"

	"otogi-helpnav/pkg/otogi"

	"github.com/gotd/td/tgerr"
)

// rpcErrorMessageNotModified is returned by messages.editMessage when the new
// text and keyboard equal what the message already shows.
const rpcErrorMessageNotModified = "MESSAGE_NOT_MODIFIED"

var rpcErrorKindsByCode = map[int]otogi.OutboundErrorKind{
	303: otogi.OutboundErrorKindTemporary,
	400: otogi.OutboundErrorKindPermanent,
	401: otogi.OutboundErrorKindPermanent,
	403: otogi.OutboundErrorKindPermanent,
	404: otogi.OutboundErrorKindPermanent,
	405: otogi.OutboundErrorKindPermanent,
	406: otogi.OutboundErrorKindPermanent,
	420: otogi.OutboundErrorKindRateLimited,
	429: otogi.OutboundErrorKindRateLimited,
}

// isUnchangedEdit reports whether err only says an edit would not change the
// rendered message. Callers treat it as a successful edit.
func isUnchangedEdit(err error) bool {
	return err != nil && tgerr.Is(err, rpcErrorMessageNotModified)
}

// mapTelegramOutboundError wraps a gotd RPC failure into otogi.OutboundError
// tagged with the operation and sink. Request validation errors pass through.
func mapTelegramOutboundError(
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

	mapped := &otogi.OutboundError{
		Operation: operation,
		Kind:      otogi.OutboundErrorKindUnknown,
		Platform:  sink.Platform,
		SinkID:    sink.ID,
		Cause:     err,
	}

	rpcErr, isRPC := tgerr.As(err)
	if isRPC {
		mapped.Code = rpcErr.Code
		mapped.Type = rpcErr.Type
		mapped.Kind = classifyTelegramRPCError(rpcErr)
	}
	if retryAfter, isFlood := tgerr.AsFloodWait(err); isFlood {
		mapped.Kind = otogi.OutboundErrorKindRateLimited
		mapped.RetryAfter = retryAfter
	}

	return mapped
}

func classifyTelegramRPCError(rpcErr *tgerr.Error) otogi.OutboundErrorKind {
	if rpcErr == nil {
		return otogi.OutboundErrorKindUnknown
	}
	if strings.Contains(strings.ToUpper(rpcErr.Type), "FLOOD") {
		return otogi.OutboundErrorKindRateLimited
	}
	if kind, known := rpcErrorKindsByCode[rpcErr.Code]; known {
		return kind
	}
	if rpcErr.Code >= 500 {
		return otogi.OutboundErrorKindTemporary
	}

	return otogi.OutboundErrorKindUnknown
}
