package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheBucket records that a named bucket exists, even while it holds no entries.
// Buckets are created lazily on first open and are only removed by an explicit delete.
type CacheBucket struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
