package kafka

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math/rand"
	"time"

	"github.com/Shopify/sarama"
)

var ErrNonPositivePartitions = errors.New("number of partitions must be positive")

// keyHashPartitioner sends keyed records to hash(key) mod partitions
// and spreads unkeyed records randomly.
// The sync producer calls Partition from a single goroutine so rnd needs no lock.
type keyHashPartitioner struct {
	hash func([]byte) uint32
	// emptyIsUnset treats a zero length key like a missing one.
	emptyIsUnset bool
	rnd          *rand.Rand
}

func newKeyHashPartitioner(hash func([]byte) uint32, emptyIsUnset bool) *keyHashPartitioner {
	return &keyHashPartitioner{
		hash:         hash,
		emptyIsUnset: emptyIsUnset,
		rnd:          rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
}

// newCRCPartitioner matches the consistent_random crc32 partitioner of librdkafka,
// sarama.NewCustomHashPartitioner(crc32.NewIEEE) maps hashes to partitions differently.
func newCRCPartitioner(topic string) sarama.Partitioner {
	return newKeyHashPartitioner(crc32.ChecksumIEEE, true)
}

// newMurmur2 matches the default partitioner of the java client.
// The java client hashes an empty key like any other value.
func newMurmur2(topic string) sarama.Partitioner {
	return newKeyHashPartitioner(func(key []byte) uint32 {
		return murmur2Hash(key) & 0x7fffffff
	}, false)
}

func (p *keyHashPartitioner) Partition(msg *sarama.ProducerMessage, numPartitions int32) (int32, error) {
	if numPartitions <= 0 {
		return 0, ErrNonPositivePartitions
	}
	if msg.Key == nil || (p.emptyIsUnset && msg.Key.Length() == 0) {
		return p.rnd.Int31n(numPartitions), nil
	}
	key, err := msg.Key.Encode()
	if err != nil {
		return 0, err
	}
	return int32(p.hash(key) % uint32(numPartitions)), nil
}

// RequiresConsistency is true, a key always maps to the same partition.
func (*keyHashPartitioner) RequiresConsistency() bool { return true }

// murmur2Hash is the 32 bit murmur2 variant of org.apache.kafka.common.utils.Utils.
func murmur2Hash(data []byte) uint32 {
	const (
		seed uint32 = 0x9747b28c
		m    uint32 = 0x5bd1e995
		r           = 24
	)
	h := seed ^ uint32(len(data))
	for ; len(data) >= 4; data = data[4:] {
		k := binary.LittleEndian.Uint32(data)
		k *= m
		k ^= k >> r
		k *= m
		h *= m
		h ^= k
	}
	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}
	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}
