// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "sync"

// PSI使用的CRC32/MPEG-2，多项式0x04C11DB7，不反转，初始值0xFFFFFFFF
//
// 注意，和hash/crc32的IEEE表不同，IEEE表是按bit反转的

const crc32Poly = 0x04c11db7

var (
	crc32Table     [256]uint32
	crc32TableOnce sync.Once
)

func initCrc32Table() {
	for i := uint32(0); i < 256; i++ {
		k := uint32(0)
		for j := (i << 24) | 0x800000; j != 0x80000000; j <<= 1 {
			var x uint32
			if (k^j)&0x80000000 != 0 {
				x = crc32Poly
			}
			k = (k << 1) ^ x
		}
		crc32Table[i] = k
	}
}

// CalcCrc32 在crc的基础上继续计算buffer，首次调用时crc传入0xffffffff
func CalcCrc32(crc uint32, buffer []byte) uint32 {
	crc32TableOnce.Do(initCrc32Table)
	for _, b := range buffer {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
