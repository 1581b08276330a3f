package policy

import (
	"math"
	"testing"
	"time"
)

func TestRetrySleepIsCapped(t *testing.T) {
	p := NewBasePolicy()
	p.SleepBetweenRetries = 200 * 24 * 365 * time.Hour
	want := time.Duration(math.MaxUint32) * time.Millisecond
	if got := p.RetrySleep(); got != want {
		t.Fatalf("sleep = %v, want cap %v", got, want)
	}

	p.SleepBetweenRetries = 5 * time.Millisecond
	if got := p.RetrySleep(); got != 5*time.Millisecond {
		t.Fatalf("sleep = %v", got)
	}
}

func TestDeadlineUnboundedWhenZero(t *testing.T) {
	p := NewBasePolicy()
	p.TotalTimeout = 0
	if !p.Deadline(time.Now()).IsZero() {
		t.Fatal("zero total timeout must give no deadline")
	}

	p.TotalTimeout = time.Second
	now := time.Now()
	if got := p.Deadline(now); !got.Equal(now.Add(time.Second)) {
		t.Fatalf("deadline = %v", got)
	}
}

func TestReadTouchTTLNormalize(t *testing.T) {
	cases := []struct {
		in   ReadTouchTTL
		want ReadTouchTTL
	}{
		{ReadTouchTTLDontReset, ReadTouchTTLDontReset},
		{ReadTouchTTLServerDefault, ReadTouchTTLServerDefault},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, ReadTouchTTLServerDefault},
		{-2, ReadTouchTTLServerDefault},
		{1000, ReadTouchTTLServerDefault},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Errorf("Normalize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := ReadTouchTTLPercent(250); got != ReadTouchTTLServerDefault {
		t.Errorf("Percent(250) = %d", got)
	}
}

func TestTTLSentinels(t *testing.T) {
	if Seconds(300) != Expiration(300) {
		t.Fatal("Seconds must pass through")
	}
	if TTLNeverExpire != 0xFFFFFFFF || TTLDontUpdate != 0xFFFFFFFE || TTLServerDefault != 0 {
		t.Fatal("sentinel values drifted")
	}
}

func TestRequiresAuthentication(t *testing.T) {
	p := NewClientPolicy()
	if p.RequiresAuthentication() {
		t.Fatal("no user, no auth")
	}
	p.User = "admin"
	p.AuthMode = AuthInternal
	if !p.RequiresAuthentication() {
		t.Fatal("internal auth with user must authenticate")
	}
	p.User = ""
	p.AuthMode = AuthPKI
	if !p.RequiresAuthentication() {
		t.Fatal("PKI always authenticates")
	}
}
