package booking

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex[int]()
	var (
		wg      sync.WaitGroup
		counter = map[int]int{}
		guard   sync.Mutex
	)
	for i := 0; i < 50; i++ {
		for key := 0; key < 3; key++ {
			wg.Add(1)
			go func(key int) {
				defer wg.Done()
				unlock := km.Lock(key)
				defer unlock()

				guard.Lock()
				v := counter[key]
				guard.Unlock()

				guard.Lock()
				counter[key] = v + 1
				guard.Unlock()
			}(key)
		}
	}
	wg.Wait()

	for key := 0; key < 3; key++ {
		if counter[key] != 50 {
			t.Fatalf("counter[%d]=%d, want 50", key, counter[key])
		}
	}
	if n := km.size(); n != 0 {
		t.Fatalf("size=%d, want 0 after all unlocks", n)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex[string]()
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	if n := km.size(); n != 1 {
		t.Fatalf("size=%d, want 1 while a is held", n)
	}
	unlockA()
	if n := km.size(); n != 0 {
		t.Fatalf("size=%d, want 0", n)
	}
}
