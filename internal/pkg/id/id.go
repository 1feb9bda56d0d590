package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string for a user record. ULIDs sort by creation
// time, which keeps the JSON store and DynamoDB scans in signup order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Time extracts the creation timestamp encoded in a ULID produced by New.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
