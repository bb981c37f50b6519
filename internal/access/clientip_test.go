package access

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "real ip wins over forwarded for",
			remoteAddr: "10.0.0.1:5000",
			headers:    map[string]string{"X-Real-IP": "8.8.8.8", "X-Forwarded-For": "1.2.3.4"},
			want:       "8.8.8.8",
		},
		{
			name:       "real ip is trimmed",
			remoteAddr: "10.0.0.1:5000",
			headers:    map[string]string{"X-Real-IP": "  8.8.4.4 "},
			want:       "8.8.4.4",
		},
		{
			name:       "first forwarded hop",
			remoteAddr: "10.0.0.1:5000",
			headers:    map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8, 9.9.9.9"},
			want:       "1.2.3.4",
		},
		{
			name:       "peer address without headers",
			remoteAddr: "203.0.113.5:41000",
			want:       "203.0.113.5",
		},
		{
			name:       "ipv6 peer address",
			remoteAddr: "[::1]:41000",
			want:       "::1",
		},
		{
			name:       "malformed header propagates",
			remoteAddr: "203.0.113.5:41000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "not-an-ip",
		},
		{
			name: "nothing available",
			want: UnknownIP,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
