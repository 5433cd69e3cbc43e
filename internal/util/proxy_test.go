package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc_UsesConfiguredProxies(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3129", "oauth.reddit.com")

	req, _ := http.NewRequest(http.MethodGet, "https://api.openai.com/v1/models", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u == nil || u.Host != "secure.local:3129" {
		t.Errorf("Expected HTTPS proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.com/", nil)
	u, _ = proxy(req)
	if u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("Expected HTTP proxy, got %v", u)
	}
}

func TestNewProxyFunc_NoProxyBypasses(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "oauth.reddit.com")

	req, _ := http.NewRequest(http.MethodGet, "https://oauth.reddit.com/user/kojied/about", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u != nil {
		t.Errorf("Expected direct connection for no_proxy host, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "https://www.reddit.com/", nil)
	u, _ = proxy(req)
	if u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("Expected HTTPS to fall back to the HTTP proxy, got %v", u)
	}
}
