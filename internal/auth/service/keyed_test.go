package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	t.Parallel()
	var (
		km      keyedMutex
		wg      sync.WaitGroup
		counter = map[string]int{}
		mapMu   sync.Mutex
	)

	for i := range 200 {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()

			mapMu.Lock()
			v := counter[key]
			mapMu.Unlock()

			mapMu.Lock()
			counter[key] = v + 1
			mapMu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter["a"])
	require.Equal(t, 100, counter["b"])
	require.Empty(t, km.locks)
}
