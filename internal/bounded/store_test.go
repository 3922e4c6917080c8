package bounded

import (
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/model"
	"github.com/stretchr/testify/require"
	"strconv"
	"testing"
)

func newStore(t *testing.T, cfg *config.Bounded) *Store {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

// TestNew_Defaults fills zero limits with package defaults.
func TestNew_Defaults(t *testing.T) {
	s := newStore(t, nil)
	cfg := s.Config()
	require.Equal(t, config.DefaultMaxCount, cfg.MaxCount)
	require.EqualValues(t, config.DefaultMaxEntrySize, cfg.MaxEntrySize)
	require.EqualValues(t, config.DefaultMaxSize, cfg.MaxSize)
}

// TestNew_Validation rejects negative limits.
func TestNew_Validation(t *testing.T) {
	for _, cfg := range []*config.Bounded{{MaxCount: -1}, {MaxEntrySize: -1}, {MaxSize: -1}} {
		_, err := New(cfg)
		require.ErrorIs(t, err, model.ErrInvalidConfig)
	}
}

// TestStore_SetGet returns value, metadata and size of a stored entry.
func TestStore_SetGet(t *testing.T) {
	s := newStore(t, nil)
	require.NoError(t, s.Set("k", []byte("hello"), model.Metadata{"type": "greeting"}))

	e, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), e.Value)
	require.Equal(t, model.Metadata{"type": "greeting"}, e.Metadata)
	require.EqualValues(t, 5, e.Size)
	require.EqualValues(t, 5, s.ByteSize())

	_, ok = s.Get("missing")
	require.False(t, ok)
}

// TestStore_NilMetadata stores an empty document for nil metadata.
func TestStore_NilMetadata(t *testing.T) {
	s := newStore(t, nil)
	require.NoError(t, s.Set("k", []byte("v"), nil))
	e, ok := s.Get("k")
	require.True(t, ok)
	require.NotNil(t, e.Metadata)
	require.Empty(t, e.Metadata)
}

// TestStore_CopiesValue keeps the stored payload independent of the caller's buffer.
func TestStore_CopiesValue(t *testing.T) {
	s := newStore(t, nil)
	buf := []byte("abc")
	require.NoError(t, s.Set("k", buf, nil))
	buf[0] = 'z'

	e, _ := s.Get("k")
	require.Equal(t, []byte("abc"), e.Value)
}

// TestStore_EntryTooLarge rejects an oversized value without touching the store.
func TestStore_EntryTooLarge(t *testing.T) {
	s := newStore(t, &config.Bounded{MaxEntrySize: 4})
	require.NoError(t, s.Set("k", []byte("1234"), nil))

	err := s.Set("k", []byte("12345"), nil)
	require.ErrorIs(t, err, model.ErrEntryTooLarge)

	e, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("1234"), e.Value)
	require.EqualValues(t, 4, s.ByteSize())
}

// TestStore_CountLimit evicts the least recently used entry past MaxCount.
func TestStore_CountLimit(t *testing.T) {
	s := newStore(t, &config.Bounded{MaxCount: 2})
	require.NoError(t, s.Set("a", []byte("1"), nil))
	require.NoError(t, s.Set("b", []byte("2"), nil))
	_, _ = s.Get("a")
	require.NoError(t, s.Set("c", []byte("3"), nil))

	require.Equal(t, 2, s.Len())
	require.True(t, s.Has("a"))
	require.False(t, s.Has("b"))
	require.True(t, s.Has("c"))
	require.EqualValues(t, 2, s.ByteSize())

	items, bytes, _ := s.Metrics()
	require.EqualValues(t, 1, items)
	require.EqualValues(t, 1, bytes)
}

// TestStore_SizeLimit evicts from the LRU end until the aggregate fits MaxSize.
func TestStore_SizeLimit(t *testing.T) {
	s := newStore(t, &config.Bounded{MaxSize: 10, MaxEntrySize: 10})
	require.NoError(t, s.Set("a", make([]byte, 4), nil))
	require.NoError(t, s.Set("b", make([]byte, 4), nil))
	require.NoError(t, s.Set("c", make([]byte, 4), nil))

	require.False(t, s.Has("a"))
	require.True(t, s.Has("b"))
	require.True(t, s.Has("c"))
	require.EqualValues(t, 8, s.ByteSize())

	require.NoError(t, s.Set("d", make([]byte, 10), nil))
	require.Equal(t, 1, s.Len())
	require.EqualValues(t, 10, s.ByteSize())
}

// TestStore_OverwriteAccounting replaces the old size of an overwritten key.
func TestStore_OverwriteAccounting(t *testing.T) {
	s := newStore(t, nil)
	require.NoError(t, s.Set("k", make([]byte, 10), nil))
	require.NoError(t, s.Set("k", make([]byte, 3), nil))
	require.EqualValues(t, 3, s.ByteSize())
	require.Equal(t, 1, s.Len())
}

// TestStore_SamePayload refreshes metadata and recency without replacing the payload.
func TestStore_SamePayload(t *testing.T) {
	s := newStore(t, &config.Bounded{MaxCount: 2})
	require.NoError(t, s.Set("a", []byte("same"), model.Metadata{"v": 1}))
	require.NoError(t, s.Set("b", []byte("other"), nil))
	require.NoError(t, s.Set("a", []byte("same"), model.Metadata{"v": 2}))
	require.NoError(t, s.Set("c", []byte("third"), nil))

	e, ok := s.Get("a")
	require.True(t, ok, "overwrite promoted the key")
	require.Equal(t, model.Metadata{"v": 2}, e.Metadata)
	require.False(t, s.Has("b"))
	require.EqualValues(t, 4+5, s.ByteSize())

	_, _, same := s.Metrics()
	require.EqualValues(t, 1, same)
}

// TestStore_Delete is idempotent and keeps the byte counter exact.
func TestStore_Delete(t *testing.T) {
	s := newStore(t, nil)
	require.NoError(t, s.Set("a", make([]byte, 7), nil))
	require.NoError(t, s.Set("b", make([]byte, 2), nil))

	require.True(t, s.Delete("a"))
	require.False(t, s.Delete("a"))
	require.EqualValues(t, 2, s.ByteSize())
	require.Equal(t, 1, s.Len())
}

// TestStore_Clear resets entries and byte counter.
func TestStore_Clear(t *testing.T) {
	s := newStore(t, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set(strconv.Itoa(i), make([]byte, i), nil))
	}
	s.Clear()
	require.Zero(t, s.Len())
	require.Zero(t, s.ByteSize())

	entries, bytes, err := s.Stats(t.Context())
	require.NoError(t, err)
	require.Zero(t, entries)
	require.Zero(t, bytes)
}

// TestStore_ByteAccountingInvariant keeps ByteSize equal to the sum of live sizes under churn.
func TestStore_ByteAccountingInvariant(t *testing.T) {
	s := newStore(t, &config.Bounded{MaxCount: 16, MaxSize: 200, MaxEntrySize: 64})
	for i := 0; i < 500; i++ {
		key := strconv.Itoa(i % 37)
		switch i % 5 {
		case 4:
			s.Delete(key)
		default:
			require.NoError(t, s.Set(key, make([]byte, (i*7)%65), nil))
		}

		var sum int64
		for k := 0; k < 37; k++ {
			if e, ok := s.Get(strconv.Itoa(k)); ok {
				sum += e.Size
			}
		}
		require.Equal(t, sum, s.ByteSize())
		require.LessOrEqual(t, s.Len(), 16)
		require.LessOrEqual(t, s.ByteSize(), int64(200))
	}
}
