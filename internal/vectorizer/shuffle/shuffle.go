// Package shuffle routes keyed records to partitions the way a dataflow
// engine's repartition step does: every record with a given key lands in
// the same partition, so joins and folds can run per partition without
// seeing each other's data.
package shuffle

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Exchange fixes the partition count shared by every stream that has to be
// co-located.
type Exchange struct {
	partitions int
}

func NewExchange(partitions int) (*Exchange, error) {
	if partitions <= 0 {
		return nil, fmt.Errorf("partition count must be positive, got %d", partitions)
	}
	return &Exchange{partitions: partitions}, nil
}

func (ex *Exchange) Partitions() int {
	return ex.partitions
}

// PartitionOf maps a key hash to a partition index.
func (ex *Exchange) PartitionOf(hash uint64) int {
	return int(hash % uint64(ex.partitions))
}

// PartitionByKey splits items into ex.Partitions() slices. Items keep their
// relative input order inside a partition.
func PartitionByKey[K comparable, T any](ex *Exchange, items []T, key func(T) K, hash func(K) uint64) [][]T {
	parts := make([][]T, ex.partitions)
	for _, item := range items {
		p := ex.PartitionOf(hash(key(item)))
		parts[p] = append(parts[p], item)
	}
	return parts
}

// Group is every item sharing one key.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupByKey groups items in first-seen key order, keeping delivery order
// within each group.
func GroupByKey[K comparable, T any](items []T, key func(T) K) []Group[K, T] {
	index := make(map[K]int)
	groups := make([]Group[K, T], 0)
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

func HashInt32(v int32) uint64 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return xxhash.Sum64(b[:])
}
