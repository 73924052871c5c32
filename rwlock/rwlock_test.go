package rwlock

import (
	"sync"
	"testing"
	"time"
)

func TestConcurrentReaders(t *testing.T) {
	l := New()

	const n = 10
	for i := 0; i < n; i++ {
		l.RLock()
	}
	if got := l.Readers(); got != n {
		t.Fatalf("got %d readers, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		l.RUnlock()
	}
	if got := l.Readers(); got != 0 {
		t.Fatalf("got %d readers, want 0", got)
	}
}

func TestWriterWaitsForReaders(t *testing.T) {
	l := New()
	l.RLock()

	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
		l.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("writer acquired the lock while a reader held it")
	case <-time.After(50 * time.Millisecond):
	}

	l.RUnlock()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func TestWriterExcludesReaders(t *testing.T) {
	l := New()
	l.Lock()

	acquired := make(chan struct{})
	go func() {
		l.RLock()
		close(acquired)
		l.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired the lock while a writer held it")
	case <-time.After(50 * time.Millisecond):
	}

	l.Unlock()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("reader never acquired the lock")
	}
}

func TestReadersAdmittedWhileWriterWaits(t *testing.T) {
	l := New()
	l.RLock()

	writerDone := make(chan struct{})
	go func() {
		l.Lock()
		l.Unlock()
		close(writerDone)
	}()

	// Give the writer time to park.
	time.Sleep(50 * time.Millisecond)

	readerDone := make(chan struct{})
	go func() {
		l.RLock()
		l.RUnlock()
		close(readerDone)
	}()

	select {
	case <-readerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("new reader was blocked by a waiting writer")
	}

	l.RUnlock()
	<-writerDone
}

func TestWaitingWritersAllProceed(t *testing.T) {
	l := New()
	l.RLock()

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock()
			l.Unlock()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	l.RUnlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("some waiting writers never acquired the lock")
	}
}

func TestMutualExclusion(t *testing.T) {
	var (
		l       = New()
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Lock()
			defer l.Unlock()
			c := counter
			time.Sleep(time.Microsecond)
			counter = c + 1
		}()
		go func() {
			defer wg.Done()
			l.RLock()
			defer l.RUnlock()
			_ = counter
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("got counter %d, want 50", counter)
	}
}

func TestUnbalancedRUnlock(t *testing.T) {
	l := New()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("RUnlock without RLock did not panic")
		}
		if r != "rwlock: RUnlock of unlocked RWLock" {
			t.Errorf("got panic %v", r)
		}

		// The lock is still usable.
		l.Lock()
		l.Unlock()
	}()

	l.RLock()
	l.RUnlock()
	l.RUnlock()
}
