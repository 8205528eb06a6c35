// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

type countWriter struct {
	bytes.Buffer
	calls int
}

func (c *countWriter) Write(p []byte) (int, error) {
	c.calls++
	return c.Buffer.Write(p)
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPacketBufWriter(t *testing.T) {
	var buf countWriter
	w := NewPacketBufWriter(&buf, 188, 4)

	w.Write(bytes.Repeat([]byte{0x1}, 188*5))
	assert.Equal(t, 188*4, w.available())
	assert.Equal(t, bytes.Repeat([]byte{0x1}, 188*5), buf.Bytes())
	buf.Reset()

	assert.Equal(t, nil, w.Write(bytes.Repeat([]byte{0x2}, 188)))
	assert.Equal(t, nil, w.Write(bytes.Repeat([]byte{0x3}, 188)))
	assert.Equal(t, 188*2, w.available())
	assert.Equal(t, 0, buf.Len())

	// 填满后写出，剩余部分留在缓存中
	assert.Equal(t, nil, w.Write(bytes.Repeat([]byte{0x4}, 188*4)))
	assert.Equal(t, 188*2, w.available())
	assert.Equal(t, 188*4, buf.Len())
	assert.Equal(t, bytes.Repeat([]byte{0x2}, 188), buf.Bytes()[:188])
	assert.Equal(t, bytes.Repeat([]byte{0x4}, 188*2), buf.Bytes()[188*2:])
	buf.Reset()

	// 剩余部分超过缓存容量时直接写
	buf.calls = 0
	assert.Equal(t, nil, w.Write(bytes.Repeat([]byte{0x5}, 188*8)))
	assert.Equal(t, 188*4, w.available())
	assert.Equal(t, 188*10, buf.Len())
	assert.Equal(t, 2, buf.calls)
	buf.Reset()

	assert.Equal(t, nil, w.Flush())
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, nil, w.Write(bytes.Repeat([]byte{0x6}, 188)))
	assert.Equal(t, nil, w.Flush())
	assert.Equal(t, 188, buf.Len())
	assert.Equal(t, int64(188*20), w.Written())
}

func TestPacketBufWriterNoBuffer(t *testing.T) {
	var buf countWriter
	w := NewPacketBufWriter(&buf, 188, 0)
	assert.Equal(t, nil, w.Write(make([]byte, 188)))
	assert.Equal(t, nil, w.Write(make([]byte, 188)))
	assert.Equal(t, 2, buf.calls)
	assert.Equal(t, nil, w.Flush())
	assert.Equal(t, int64(376), w.Written())
}

func TestPacketBufWriterError(t *testing.T) {
	w := NewPacketBufWriter(failWriter{}, 188, 1)
	assert.Equal(t, nil, w.Write(make([]byte, 188)))
	err := w.Write(make([]byte, 188))
	assert.IsNotNil(t, err)
	assert.Equal(t, err, w.Write(make([]byte, 188)))
	assert.Equal(t, err, w.Flush())
}
