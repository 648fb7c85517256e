package http

import (
	"io"
	"strings"
	"testing"
)

func TestCreateRequestBody(t *testing.T) {
	c := NewClient()
	cases := []struct {
		name string
		body interface{}
		want string
	}{
		{"nil", nil, ""},
		{"bytes", []byte("raw"), "raw"},
		{"string", "text", "text"},
		{"reader", strings.NewReader("stream"), "stream"},
		{"map encodes as json", map[string]string{"symbol": "MSFT"}, `{"symbol":"MSFT"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := c.createRequestBody(&RequestOptions{Body: tc.body})
			if err != nil {
				t.Fatalf("body: %v", err)
			}
			if r == nil {
				if tc.want != "" {
					t.Fatalf("nil body, want %q", tc.want)
				}
				return
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("body = %q, want %q", got, tc.want)
			}
		})
	}
}
