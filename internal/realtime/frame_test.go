// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/realtime"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"event", `{"type":"event","event":"dashboard_stats","data":{"total_leads":4}}`, false},
		{"ack", `{"type":"ack","id":"7","data":null}`, false},
		{"connect", `{"type":"connect","data":{"sid":"abc"}}`, false},
		{"disconnect_without_data", `{"type":"disconnect"}`, false},
		{"event_without_name", `{"type":"event"}`, true},
		{"ack_without_id", `{"type":"ack"}`, true},
		{"unknown_type", `{"type":"ping"}`, true},
		{"not_json", `hello`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := realtime.DecodeFrame([]byte(tt.input))
			if tt.wantErr {
				var malformed *realtime.FrameError
				assert.ErrorAs(t, err, &malformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEventFrame(t *testing.T) {
	t.Run("nil_payload_has_no_data", func(t *testing.T) {
		frame, err := realtime.EventFrame("request_dashboard_stats", nil)
		require.NoError(t, err)

		encoded, err := json.Marshal(frame)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"event","event":"request_dashboard_stats"}`, string(encoded))
	})

	t.Run("raw_payload_passes_through", func(t *testing.T) {
		frame, err := realtime.EventFrame("recent_leads", json.RawMessage(`[1,2]`))
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(frame.Data))
	})

	t.Run("unencodable_payload", func(t *testing.T) {
		_, err := realtime.EventFrame("broken", make(chan int))
		assert.Error(t, err)
	})
}
