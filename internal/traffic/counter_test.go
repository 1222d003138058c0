package traffic

import (
	"sync"
	"testing"
)

func TestCounter_AddSession(t *testing.T) {
	counter := NewCounter()

	counter.AddSession("C2S")
	stats := counter.Get("C2S")

	if stats.Sessions != 1 {
		t.Errorf("Expected 1 session, got %d", stats.Sessions)
	}
	if stats.LastActivity.IsZero() {
		t.Error("Expected LastActivity to be set")
	}
}

func TestCounter_AddBytes(t *testing.T) {
	counter := NewCounter()

	counter.AddSent("C2S", 100)
	counter.AddReceived("C2S", 200)
	counter.AddReceived("C2S", 50)
	stats := counter.Get("C2S")

	if stats.BytesSent != 100 || stats.MessagesSent != 1 {
		t.Errorf("Expected 100 bytes in 1 write, got %d in %d", stats.BytesSent, stats.MessagesSent)
	}
	if stats.BytesReceived != 250 || stats.MessagesReceived != 2 {
		t.Errorf("Expected 250 bytes in 2 messages, got %d in %d", stats.BytesReceived, stats.MessagesReceived)
	}
}

func TestCounter_UnknownID(t *testing.T) {
	counter := NewCounter()
	if stats := counter.Get("missing"); stats.Sessions != 0 || !stats.LastActivity.IsZero() {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestCounter_Concurrent(t *testing.T) {
	counter := NewCounter()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.AddSession("S2S")
		}()
	}
	wg.Wait()

	if got := counter.All()["S2S"].Sessions; got != 100 {
		t.Errorf("Expected 100 sessions, got %d", got)
	}
}
