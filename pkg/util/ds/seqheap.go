// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"github.com/emirpasic/gods/trees/binaryheap"
)

// SeqHeap keeps values ordered by an int64 sequence number, lowest first.
// It is not safe for concurrent use; callers hold their own lock.
type SeqHeap[T any] struct {
	heap *binaryheap.Heap
}

type seqEntry[T any] struct {
	Seq int64
	Val T
}

func MakeSeqHeap[T any]() *SeqHeap[T] {
	return &SeqHeap[T]{
		heap: binaryheap.NewWith(func(aArg, bArg any) int {
			a := aArg.(seqEntry[T])
			b := bArg.(seqEntry[T])
			if a.Seq < b.Seq {
				return -1
			} else if a.Seq > b.Seq {
				return 1
			}
			return 0
		}),
	}
}

func (sh *SeqHeap[T]) Push(seq int64, val T) {
	sh.heap.Push(seqEntry[T]{Seq: seq, Val: val})
}

// Peek returns the lowest entry without removing it.
func (sh *SeqHeap[T]) Peek() (int64, T, bool) {
	topI, ok := sh.heap.Peek()
	if !ok {
		var zero T
		return 0, zero, false
	}
	top := topI.(seqEntry[T])
	return top.Seq, top.Val, true
}

func (sh *SeqHeap[T]) Pop() (int64, T, bool) {
	topI, ok := sh.heap.Pop()
	if !ok {
		var zero T
		return 0, zero, false
	}
	top := topI.(seqEntry[T])
	return top.Seq, top.Val, true
}

// PopLast removes and returns the entry with the highest sequence number.
func (sh *SeqHeap[T]) PopLast() (int64, T, bool) {
	if sh.heap.Empty() {
		var zero T
		return 0, zero, false
	}
	var entries []seqEntry[T]
	for !sh.heap.Empty() {
		vI, _ := sh.heap.Pop()
		entries = append(entries, vI.(seqEntry[T]))
	}
	last := entries[len(entries)-1]
	for _, entry := range entries[:len(entries)-1] {
		sh.heap.Push(entry)
	}
	return last.Seq, last.Val, true
}

func (sh *SeqHeap[T]) Len() int {
	return sh.heap.Size()
}

func (sh *SeqHeap[T]) Empty() bool {
	return sh.heap.Empty()
}

func (sh *SeqHeap[T]) Clear() {
	sh.heap.Clear()
}
