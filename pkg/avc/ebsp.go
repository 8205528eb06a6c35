// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import "github.com/q191201771/lalts/pkg/base"

// FindNaluEnd 从start开始查找下一个 00 00 01，找不到时返回s.Len()
//
// @return found: 是否找到了下一个start code
func FindNaluEnd(s base.ByteStore, start int) (end int, found bool) {
	n := s.Len()
	for i := start; i+2 < n; i++ {
		if s.ByteAt(i) == 0 && s.ByteAt(i+1) == 0 && s.ByteAt(i+2) == 1 {
			return i, true
		}
	}
	return n, false
}

// EbspToRbsp 去除[start, end)中的emulation prevention byte
//
// @param out: 复用的内存，可以为nil
func EbspToRbsp(out []byte, s base.ByteStore, start, end int) []byte {
	out = out[:0]
	zeros := 0
	for i := start; i < end; i++ {
		b := s.ByteAt(i)
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// RbspToEbsp 插入emulation prevention byte
func RbspToEbsp(out []byte, rbsp []byte) []byte {
	out = out[:0]
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
