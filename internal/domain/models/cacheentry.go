package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheEntry is a stored response snapshot inside a cache bucket.
// An entry is identified by (Bucket, Method, URL); URL is always absolute.
type CacheEntry struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// Request identity
	Bucket string `bson:"bucket" json:"bucket"`
	Method string `bson:"method" json:"method"`
	URL    string `bson:"url" json:"url"`

	// Response snapshot
	Status int                 `bson:"status" json:"status"`
	Header map[string][]string `bson:"header,omitempty" json:"header,omitempty"`
	Body   []byte              `bson:"body,omitempty" json:"-"`
	Type   string              `bson:"type" json:"type"` // "basic", "cors" or "opaque"

	StoredAt time.Time `bson:"stored_at" json:"stored_at"`
}

// Clone returns a deep copy so callers can hand the entry to another
// goroutine without sharing header or body storage.
func (e CacheEntry) Clone() CacheEntry {
	out := e
	if e.Header != nil {
		out.Header = make(map[string][]string, len(e.Header))
		for k, v := range e.Header {
			out.Header[k] = append([]string(nil), v...)
		}
	}
	if e.Body != nil {
		out.Body = append([]byte(nil), e.Body...)
	}
	return out
}
