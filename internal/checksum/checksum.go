package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/tasktracker/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Task returns the digest of the task's serialized form. encoding/json sorts
// map keys, so equal tasks always hash the same.
func Task(t models.Task) string {
	data, err := json.Marshal(t.Serialize())
	if err != nil {
		// Serialize only produces strings and ints.
		panic(err)
	}
	return Sum(data)
}
