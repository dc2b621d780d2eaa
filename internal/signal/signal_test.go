package signal

import (
	"testing"
	"time"
)

func TestExitIntent(t *testing.T) {
	now := time.Now()
	cases := []struct {
		ev   Event
		want bool
	}{
		{Pointer(0, now), true},
		{Pointer(-12, now), true},
		{Pointer(40, now), false},
		{Scroll(ScrollUp, now), false},
		{CTAClick(now), false},
	}
	for _, tc := range cases {
		if got := tc.ev.ExitIntent(); got != tc.want {
			t.Fatalf("ExitIntent(%+v) = %v, want %v", tc.ev, got, tc.want)
		}
	}
}

func TestChanSource(t *testing.T) {
	ch := make(ChanSource, 1)
	ch <- Tick(time.Now())
	var src Source = ch
	ev := <-src.Events()
	if ev.Kind != KindTick {
		t.Fatalf("unexpected kind %s", ev.Kind)
	}
}
