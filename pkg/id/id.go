package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a time-sortable ULID string.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID stamped with t. IDs generated in the same millisecond stay ordered.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	v, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		panic(err)
	}
	return v.String()
}

// OrderLinkID builds a client order id for the exchange: a short prefix plus a ULID.
// Bybit caps orderLinkId at 36 characters.
func OrderLinkID(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	if prefix == "" {
		return New()
	}
	return prefix + "-" + New()
}

// Time extracts the timestamp embedded in a ULID string.
func Time(s string) (time.Time, error) {
	v, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()), nil
}
