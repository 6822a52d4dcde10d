package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCallback(t *testing.T) {
	payload, err := EncodeCallback(VerbAccept, "req-123")
	require.NoError(t, err)
	assert.Equal(t, "send:req-123", payload)
}

func TestEncodeCallback_TooLong(t *testing.T) {
	_, err := EncodeCallback(VerbAccept, strings.Repeat("x", CallbackDataLimitBytes))
	assert.ErrorIs(t, err, ErrCallbackTooLong)

	// Exactly at the limit is fine.
	data := strings.Repeat("x", CallbackDataLimitBytes-len(VerbAccept)-len(CallbackDataSeparator))
	payload, err := EncodeCallback(VerbAccept, data)
	require.NoError(t, err)
	assert.Len(t, payload, CallbackDataLimitBytes)
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantVerb string
		wantData string
		wantErr  error
	}{
		{name: "accept", input: "send:req-1", wantVerb: VerbAccept, wantData: "req-1"},
		{name: "reject", input: "reject:req-1", wantVerb: VerbReject, wantData: "req-1"},
		{name: "telebot prefix stripped", input: "\fsend:req-1", wantVerb: VerbAccept, wantData: "req-1"},
		{name: "payload may contain separator", input: "send:a:b:c", wantVerb: VerbAccept, wantData: "a:b:c"},
		{name: "empty", input: "", wantErr: ErrEmptyCallback},
		{name: "prefix only", input: "\f", wantErr: ErrEmptyCallback},
		{name: "unknown verb", input: "frobnicate:req-1", wantErr: ErrUnknownVerb},
		{name: "verb without payload", input: "send", wantErr: ErrMissingPayload},
		{name: "verb with empty payload", input: "send:", wantErr: ErrMissingPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, data, err := DecodeCallback(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerb, verb)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, err := EncodeCallback(VerbReject, "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)

	verb, data, err := DecodeCallback(payload)
	require.NoError(t, err)
	assert.Equal(t, VerbReject, verb)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", data)
}
