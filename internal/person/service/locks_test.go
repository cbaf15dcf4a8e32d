package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializePerKey(t *testing.T) {
	locks := newKeyedLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("hid-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 64, counter)
	locks.mu.Lock()
	assert.Empty(t, locks.locks, "released locks must not accumulate")
	locks.mu.Unlock()
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
