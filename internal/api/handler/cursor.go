package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/printhub/printhub-be/internal/api/storage"
)

// errInvalidCursor is returned when a pagination cursor does not carry
// the expected "<unix-nanos>|<job-id>" payload.
var errInvalidCursor = errors.New("invalid cursor format")

// DecodeJobCursor unpacks an opaque pagination cursor into the keyset
// position it encodes. An empty string means the first page and yields
// a nil cursor.
func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidCursor, err)
	}

	nanosPart, jobID, found := strings.Cut(string(decoded), "|")
	if !found || jobID == "" {
		return nil, errInvalidCursor
	}

	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", errInvalidCursor, err)
	}

	return &storage.JobCursor{
		CreatedAt: time.Unix(0, nanos),
		JobID:     jobID,
	}, nil
}

// EncodeJobCursor packs a keyset position into the opaque form handed
// to clients as the next_cursor of a job listing.
func EncodeJobCursor(cursor *storage.JobCursor) (string, error) {
	payload := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobID)
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}
