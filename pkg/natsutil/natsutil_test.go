package natsutil

import (
	"sort"
	"testing"

	"github.com/nats-io/nats.go"
)

func TestHeaderCarrier_RoundTrip(t *testing.T) {
	msg := &nats.Msg{Subject: "t"}
	c := (*natsHeaderCarrier)(msg)

	if got := c.Get("traceparent"); got != "" {
		t.Fatalf("empty carrier returned %q", got)
	}
	if keys := c.Keys(); keys != nil {
		t.Fatalf("empty carrier keys %v", keys)
	}

	c.Set("traceparent", "00-abc-def-01")
	c.Set("tracestate", "vendor=1")

	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("traceparent %q", got)
	}
	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "Traceparent" || keys[1] != "Tracestate" {
		t.Errorf("keys %v", keys)
	}

	// The carrier writes through to the message headers.
	if msg.Header.Get("traceparent") != "00-abc-def-01" {
		t.Error("header not visible on the underlying message")
	}
}

func TestHeaderCarrier_Overwrite(t *testing.T) {
	c := &natsHeaderCarrier{}
	c.Set("k", "first")
	c.Set("k", "second")
	if got := c.Get("k"); got != "second" {
		t.Fatalf("got %q, want the last value", got)
	}
}
