// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// ByteStore 可按下标随机读写的逻辑字节流
//
// 视频ES在segment中被其他PID的packet以及TS头部打断，扫描时通过ByteStore看到连续的字节
type ByteStore interface {
	Len() int
	ByteAt(i int) byte

	// SetByteAt 下标不可写时（比如来自上一个segment的残留数据）静默忽略
	SetByteAt(i int, b byte)
}

// Bytes 普通切片的ByteStore实现
type Bytes []byte

func (b Bytes) Len() int {
	return len(b)
}

func (b Bytes) ByteAt(i int) byte {
	return b[i]
}

func (b Bytes) SetByteAt(i int, v byte) {
	b[i] = v
}

// HasStartCodeAt pos处是否为 00 00 01
func HasStartCodeAt(s ByteStore, pos int) bool {
	return pos+3 <= s.Len() && s.ByteAt(pos) == 0 && s.ByteAt(pos+1) == 0 && s.ByteAt(pos+2) == 1
}
