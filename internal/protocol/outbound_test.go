package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutboundMode(t *testing.T) {
	tests := []struct {
		input   string
		want    OutboundMode
		wantErr bool
	}{
		{"", OutboundStructured, false},
		{"structured", OutboundStructured, false},
		{" TEXT ", OutboundText, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutboundMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeOutbound(t *testing.T) {
	frame, err := EncodeOutbound(OutboundStructured, "/settings", "change my email")
	require.NoError(t, err)
	assert.JSONEq(t, `{"location":"/settings","message":"change my email"}`, frame)

	frame, err = EncodeOutbound(OutboundText, "/settings", "plain words")
	require.NoError(t, err)
	assert.Equal(t, "plain words", frame)

	_, err = EncodeOutbound("carrier-pigeon", "/", "x")
	assert.Error(t, err)
}

func TestDecodeOutbound(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Outbound
	}{
		{"structured", `{"location":"/tasks","message":"add milk"}`, Outbound{Location: "/tasks", Message: "add milk"}},
		{"structured without location", `{"message":"hi"}`, Outbound{Message: "hi"}},
		{"json string", `"quoted"`, Outbound{Message: "quoted"}},
		{"bare text", `make it green`, Outbound{Message: "make it green"}},
		{"object without message", `{"foo":1}`, Outbound{Message: `{"foo":1}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeOutbound([]byte(tt.input)))
		})
	}
}
