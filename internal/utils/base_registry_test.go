package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassRegistry() *BaseRegistry[string, int] {
	r := NewBaseRegistry[string, int]("class loader app", "class name", "class")
	r.SetValidator(ChainValidators(
		NotEmptyKeyValidator[int]("class name"),
		NoDuplicateValidator[string, int]("class %s is already defined"),
	))
	return r
}

func TestBaseRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		wantErr string
		wantLen int
	}{
		{name: "distinct keys", keys: []string{"ledger.Teller", "ledger.Accounts"}, wantLen: 2},
		{name: "empty key", keys: []string{""}, wantErr: "class loader app: class name cannot be empty"},
		{
			name:    "duplicate key",
			keys:    []string{"ledger.Teller", "ledger.Teller"},
			wantErr: "class loader app: class ledger.Teller is already defined",
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newClassRegistry()
			var err error
			for i, k := range tt.keys {
				if err = r.Register(k, i); err != nil {
					break
				}
			}
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantLen, r.Len())
		})
	}
}

func TestBaseRegistry_Lookup(t *testing.T) {
	r := newClassRegistry()
	require.NoError(t, r.Register("b", 2))
	require.NoError(t, r.Register("a", 1))

	v, err := r.GetOrError("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, r.Has("b"))

	_, err = r.GetOrError("c")
	assert.EqualError(t, err, "class loader app: no class registered for class name c")

	assert.Equal(t, []string{"a", "b"}, SortedKeys(r))
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, r.Snapshot())

	assert.True(t, r.Delete("a"))
	assert.False(t, r.Delete("a"))
	assert.False(t, r.Has("a"))
}

func TestBaseRegistry_ConcurrentDuplicates(t *testing.T) {
	r := newClassRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Register("ledger.Teller", i) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}
