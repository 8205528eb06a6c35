// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "io"

// PacketBufWriter 缓存sink输出的TS数据，攒够一块后再实际写
//
// 与bufio.Writer表现不同的地方：
// - 输入总是整数个packet，缓存容量也是packet大小的整数倍，所以除了最后一次Flush，实际写的总是完整的packet
// - 数据超过缓存容量时，bufio.Writer一般会切分成多个缓存容量大小的块实际写，PacketBufWriter则可能实际写大数据
// - 发生写错误后，后续所有写都直接返回该错误
type PacketBufWriter struct {
	wr  io.Writer
	buf []byte
	n   int // 当前已缓存大小

	written int64
	err     error
}

// NewPacketBufWriter
//
// @param packetSize: 包含tts前缀的packet大小
// @param packetNum:  缓存多少个packet，小于等于0时不缓存
func NewPacketBufWriter(wr io.Writer, packetSize int, packetNum int) *PacketBufWriter {
	w := &PacketBufWriter{
		wr: wr,
	}
	if packetNum > 0 {
		w.buf = make([]byte, packetSize*packetNum)
	}
	return w
}

func (w *PacketBufWriter) Write(p []byte) error {
	if w.err != nil {
		return w.err
	}
	avail := w.available()
	if len(p) <= avail {
		w.append(p)
		return nil
	}

	if w.n == 0 {
		// 缓存完全没有使用，依然空间不够，直接写
		return w.write(p)
	}

	// 填满当前缓存块，并写出
	w.append(p[:avail])
	if err := w.Flush(); err != nil {
		return err
	}
	remain := p[avail:]
	if len(remain) < len(w.buf) {
		w.append(remain)
		return nil
	}
	return w.write(remain)
}

func (w *PacketBufWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.n == 0 {
		return nil
	}
	err := w.write(w.buf[:w.n])
	w.n = 0
	return err
}

// Written 已经实际写出的字节数
func (w *PacketBufWriter) Written() int64 {
	return w.written
}

func (w *PacketBufWriter) available() int {
	return len(w.buf) - w.n
}

func (w *PacketBufWriter) append(p []byte) {
	copy(w.buf[w.n:], p)
	w.n += len(p)
}

func (w *PacketBufWriter) write(p []byte) error {
	n, err := w.wr.Write(p)
	w.written += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	w.err = err
	return err
}
