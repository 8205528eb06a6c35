// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "sort"

// PayloadView 把segment中某个PID的ES数据（跳过TS头、adaptation field和PES头）看作一段连续的字节流
//
// 可以在前面挂一段只读的carry数据，用于跨segment查找start code
type PayloadView struct {
	segment []byte
	carry   []byte

	// spans[i]对应segment中的一段ES数据，starts[i]是该段在view中的起始下标
	spans  []payloadSpan
	starts []int
	length int

	pesStarts []int

	last int
}

type payloadSpan struct {
	offset int
	length int
}

// NewPayloadView
//
// @param segment: TS packet对齐的数据，每个packet前有ttsSize字节前缀
// @param carry:   上一个segment遗留的数据，只读
func NewPayloadView(segment []byte, ttsSize int, pid uint16, carry []byte) *PayloadView {
	v := &PayloadView{
		segment: segment,
		carry:   carry,
		length:  len(carry),
	}
	stride := ttsSize + PacketSize
	for i := 0; i+stride <= len(segment); i += stride {
		packet := segment[i+ttsSize : i+stride]
		if packet[0] != syncByte || Pid(packet) != pid {
			continue
		}
		offset := PayloadOffset(packet)
		if offset >= PacketSize {
			continue
		}
		if IsPayloadUnitStart(packet) && offset+PesFixedHeaderSize <= PacketSize && HasPesStartCode(packet[offset:]) {
			offset += PesFixedHeaderSize + int(packet[offset+8])
			v.pesStarts = append(v.pesStarts, v.length)
			if offset >= PacketSize {
				continue
			}
		}
		v.spans = append(v.spans, payloadSpan{offset: i + ttsSize + offset, length: PacketSize - offset})
		v.starts = append(v.starts, v.length)
		v.length += PacketSize - offset
	}
	return v
}

func (v *PayloadView) Len() int {
	return v.length
}

// CarryLen 挂在前面的只读数据长度
func (v *PayloadView) CarryLen() int {
	return len(v.carry)
}

// PesStarts 每个PES的ES数据在view中的起始下标，升序
func (v *PayloadView) PesStarts() []int {
	return v.pesStarts
}

func (v *PayloadView) ByteAt(i int) byte {
	if i < len(v.carry) {
		return v.carry[i]
	}
	return v.segment[v.locate(i)]
}

func (v *PayloadView) SetByteAt(i int, b byte) {
	if i < len(v.carry) {
		return
	}
	v.segment[v.locate(i)] = b
}

// Tail 返回view最后n个字节的拷贝，可作为下一个segment的carry
func (v *PayloadView) Tail(n int) []byte {
	if n > v.length {
		n = v.length
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = v.ByteAt(v.length - n + i)
	}
	return out
}

// locate 返回view下标i在segment中的下标，调用方保证i在范围内
func (v *PayloadView) locate(i int) int {
	// 扫描基本是顺序访问，先看上次命中的span
	if v.last < len(v.spans) {
		s := v.starts[v.last]
		if i >= s && i < s+v.spans[v.last].length {
			return v.spans[v.last].offset + i - s
		}
		if n := v.last + 1; n < len(v.spans) && i >= v.starts[n] && i < v.starts[n]+v.spans[n].length {
			v.last = n
			return v.spans[n].offset + i - v.starts[n]
		}
	}
	idx := sort.Search(len(v.starts), func(k int) bool { return v.starts[k] > i }) - 1
	v.last = idx
	return v.spans[idx].offset + i - v.starts[idx]
}
