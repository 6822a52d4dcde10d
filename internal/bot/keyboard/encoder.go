package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator = ":"
	// CallbackDataLimitBytes is Telegram's hard limit on callback payloads.
	CallbackDataLimitBytes = 64
)

// Callback verbs carried on the wire as "<verb>:<id>". The id may itself
// contain separators, so decoding splits on the first one only.
const (
	VerbAccept = "send"
	VerbReject = "reject"
)

var (
	ErrEmptyCallback   = errors.New("callback data is empty")
	ErrUnknownVerb     = errors.New("unknown callback verb")
	ErrMissingPayload  = errors.New("callback data has no payload")
	ErrCallbackTooLong = fmt.Errorf("callback data exceeds %d byte limit", CallbackDataLimitBytes)
)

// EncodeCallback renders "<verb>:<data>" and enforces the Telegram payload
// limit.
func EncodeCallback(verb, data string) (string, error) {
	payload := verb
	if data != "" {
		payload = verb + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("%w: got %d", ErrCallbackTooLong, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data into verb and payload on the first
// separator and rejects verbs outside the known set.
func DecodeCallback(callbackData string) (verb, data string, err error) {
	// telebot prefixes callback data with "\f"; strip it if present.
	callbackData = strings.TrimPrefix(callbackData, "\f")
	if callbackData == "" {
		return "", "", ErrEmptyCallback
	}

	verb = callbackData
	if idx := strings.Index(callbackData, CallbackDataSeparator); idx != -1 {
		verb = callbackData[:idx]
		data = callbackData[idx+len(CallbackDataSeparator):]
	}

	switch verb {
	case VerbAccept, VerbReject:
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}

	if data == "" {
		return "", "", ErrMissingPayload
	}

	return verb, data, nil
}
