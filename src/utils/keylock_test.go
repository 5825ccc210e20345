package utils_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"cryptofolio/src/utils"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := utils.NewKeyedMutex()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := locks.Lock("w1:c0:t1:n0")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutexAllowsDifferentKeysConcurrently(t *testing.T) {
	locks := utils.NewKeyedMutex()

	unlockA := locks.Lock("a")

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	// Key "b" must not wait for key "a".
	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	locks := utils.NewKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("shared")
			unlock()
		}()
	}
	wg.Wait()

	// Reacquiring after full release must start from a fresh entry.
	unlock := locks.Lock("shared")
	unlock()
}
