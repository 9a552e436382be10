package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/pushgate/pkg/errors"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Inbound
		invalid bool
	}{
		{"heartbeat", `{"event":"HEARTBEAT","data":{}}`, Heartbeat{}, false},
		{"heartbeat with null data", `{"event":"HEARTBEAT","data":null}`, Heartbeat{}, false},
		{"unknown", `{"event":"TYPING","data":{"x":1}}`, Unknown{Event: "TYPING", Data: json.RawMessage(`{"x":1}`)}, false},
		{"missing data", `{"event":"HEARTBEAT"}`, nil, true},
		{"missing event", `{"data":{}}`, nil, true},
		{"array", `[1,2]`, nil, true},
		{"null", `null`, nil, true},
		{"not json", `hello`, nil, true},
		{"non string event", `{"event":5,"data":{}}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			if tt.invalid {
				assert.True(t, errors.Is(err, ErrInvalidFrame))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageEncode(t *testing.T) {
	data, err := NewMessage(EventPrepare, PrepareData{Interval: 45000, ID: 100}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"PREPARE","data":{"interval":45000,"id":100}}`, string(data))

	data, err = NewMessage("PING", nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"PING","data":{}}`, string(data))

	data, err = NewMessage(EventHeartbeatAck, HeartbeatAckData{Received: 3}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"HEARTBEAT_ACK","data":{"received":3}}`, string(data))
}
