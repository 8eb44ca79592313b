package analytics

import (
	"crypto/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const consumerPrefix = "presskit"

// NewConsumerID names this process within the analytics consumer group.
// The ULID suffix keeps restarts on the same host and pid distinct, so a
// fresh worker never inherits another consumer's pending entries by name.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	host = strings.ReplaceAll(host, ":", "-")
	suffix := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	return strings.Join([]string{consumerPrefix, host, strconv.Itoa(os.Getpid()), strings.ToLower(suffix)}, ":")
}
