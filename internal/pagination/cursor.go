// Package pagination implements the opaque keyset cursor used by the
// per-user transaction history endpoint. A cursor names the (createdAt, id)
// key of the last row a client saw; the store resumes strictly before it.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor covers every malformed cursor shape. Handlers map it to
// a 400 so clients can't tell which part of the token was wrong.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a decoded pagination position.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode packs the key into a URL-safe token. Clients must treat it as
// opaque; the nanosecond|id layout is not part of the API.
func Encode(createdAt time.Time, id string) string {
	return base64.URLEncoding.EncodeToString(
		[]byte(fmt.Sprintf("%d|%s", createdAt.UnixNano(), id)))
}

// Decode unpacks a token. An empty token means "first page" and decodes to
// (nil, nil).
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	nanosStr, id, found := strings.Cut(string(raw), "|")
	if !found {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// ComputePage trims an over-fetched slice (limit+1 rows) to the page size
// and, when a row was cut, emits the cursor for the new last row. key
// extracts (createdAt, id) from an item.
func ComputePage[T any](items []T, limit int, key func(T) (time.Time, string)) (page []T, next string, hasMore bool) {
	if len(items) <= limit {
		return items, "", false
	}

	page = items[:limit]
	createdAt, id := key(page[limit-1])
	return page, Encode(createdAt, id), true
}
