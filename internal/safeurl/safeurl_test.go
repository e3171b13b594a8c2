package safeurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"HTTPS://x", true},
		{"https://", false},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allow, IsHTTPOrHTTPS(tt.url), tt.url)
	}
}

func TestSameOrigin(t *testing.T) {
	base := "https://api.vieon.vn/backend/cm/v5"
	tests := []struct {
		url  string
		want bool
	}{
		{"https://api.vieon.vn/backend/cm/v5/content/1?platform=web", true},
		{"HTTPS://API.VIEON.VN/backend/cm/v5/content/1", true},
		{"http://api.vieon.vn/backend/cm/v5/content/1", false},
		{"https://api.vieon.vn:8443/backend/cm/v5/content/1", false},
		{"https://evil.example/backend/cm/v5/content/1", false},
		{"https://api.vieon.vn.evil.example/x", false},
		{"http://127.0.0.1:8080/admin", false},
		{"file:///etc/passwd", false},
		{"/backend/cm/v5/content/1", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SameOrigin(tt.url, base), tt.url)
	}
	assert.False(t, SameOrigin("https://api.vieon.vn/x", "not-a-url"))
}

func TestResolve(t *testing.T) {
	base := "https://cdn.example.com/vod/abc/master.m3u8?token=1"
	tests := []struct {
		name, ref, want string
	}{
		{"relative", "1080p/index.m3u8", "https://cdn.example.com/vod/abc/1080p/index.m3u8"},
		{"root relative", "/audio/vi.m3u8", "https://cdn.example.com/audio/vi.m3u8"},
		{"absolute", "https://other.example.com/v.m3u8", "https://other.example.com/v.m3u8"},
		{"parent", "../x.m3u8", "https://cdn.example.com/vod/x.m3u8"},
		{"blank", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(base, tt.ref))
		})
	}
	assert.Equal(t, "a.m3u8", Resolve("", "a.m3u8"))
}

func TestReferer(t *testing.T) {
	assert.Equal(t, "https://vieon.vn/", Referer("https://api.vieon.vn/backend/cm/v5"))
	assert.Equal(t, "https://example.co.uk/", Referer("https://cdn.media.example.co.uk/a.m3u8"))
	assert.Equal(t, "", Referer("file:///x"))
}

func TestReferer_IPHost(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8080/", Referer("http://127.0.0.1:8080/api"))
}
