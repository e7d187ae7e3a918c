package client

import (
	"net/http"
	"testing"
	"time"
)

func TestWithHTTPClient(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}
	c := &Client{}

	WithHTTPClient(customClient)(c)
	if c.httpClient != customClient {
		t.Error("WithHTTPClient did not set the custom HTTP client")
	}

	WithHTTPClient(nil)(c)
	if c.httpClient != customClient {
		t.Error("WithHTTPClient(nil) should leave the client unchanged")
	}
}

func TestWithTimeout(t *testing.T) {
	c := &Client{httpClient: &http.Client{}}

	WithTimeout(5 * time.Second)(c)
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v, want 5s", c.httpClient.Timeout)
	}

	WithTimeout(0)(c)
	if c.httpClient.Timeout != 5*time.Second {
		t.Error("WithTimeout(0) should leave the timeout unchanged")
	}
}

func TestWithLogger(t *testing.T) {
	logger := &testLogger{}
	c := &Client{}

	WithLogger(logger)(c)
	if c.logger != logger {
		t.Error("WithLogger did not set the custom logger")
	}
}

func TestWithRetryMax(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"positive value", 5, 5},
		{"zero disables retries", 0, 0},
		{"negative value ignored", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryMax: 3}
			WithRetryMax(tt.input)(c)
			if c.retryMax != tt.expected {
				t.Errorf("WithRetryMax(%d): got %d, want %d", tt.input, c.retryMax, tt.expected)
			}
		})
	}
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name      string
		min, max  time.Duration
		expectMin time.Duration
		expectMax time.Duration
	}{
		{"valid range", time.Second, 5 * time.Second, time.Second, 5 * time.Second},
		{"equal values", 2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second},
		{"zero min ignored", 0, 5 * time.Second, 0, 0},
		{"max below min ignored", 5 * time.Second, 2 * time.Second, 5 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{}
			WithRetryWait(tt.min, tt.max)(c)
			if c.retryWaitMin != tt.expectMin {
				t.Errorf("retryWaitMin: got %v, want %v", c.retryWaitMin, tt.expectMin)
			}
			if c.retryWaitMax != tt.expectMax {
				t.Errorf("retryWaitMax: got %v, want %v", c.retryWaitMax, tt.expectMax)
			}
		})
	}
}

func TestWithUserAgent(t *testing.T) {
	c := &Client{userAgent: "default"}

	WithUserAgent("custom-agent/1.0")(c)
	if c.userAgent != "custom-agent/1.0" {
		t.Errorf("user agent: got %q", c.userAgent)
	}

	WithUserAgent("")(c)
	if c.userAgent != "custom-agent/1.0" {
		t.Error("WithUserAgent(\"\") should leave the agent unchanged")
	}
}
