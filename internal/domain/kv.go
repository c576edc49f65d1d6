package domain

import "time"

// KVEntry is a single key/value row backing the SQL key-value store. Values
// are raw JSON documents written and read as a whole.
//
// Fields:
//   - Key: the store key (e.g. "quetras_queries"); primary key.
//   - Value: the serialized document.
//   - Version: incremented on every write; used for weak ETags.
//   - UpdatedAt: time of the last write, managed by GORM.
type KVEntry struct {
	Key       string    `gorm:"column:kv_key;type:varchar(128);primaryKey"`
	Value     []byte    `gorm:"not null"`
	Version   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"index"`
}

// TableName returns the database table name for KVEntry.
func (KVEntry) TableName() string { return "kv_entries" }
