// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// DumpFile 将sink收到的ES单元按条写入文件，用于离线对比
//
// 每条记录: Ver(4) | Typ(4) MediaType | Len(4) | Timestamp(4) pts毫秒 | Body
type DumpFile struct {
	file *os.File
}

type DumpFileMessage struct {
	Ver       uint32
	Typ       uint32
	Len       uint32
	Timestamp uint32
	Body      []byte
}

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) Write(typ MediaType, ptsMs uint32, b []byte) error {
	_, err := d.file.Write(d.pack(typ, ptsMs, b))
	return err
}

func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	header := make([]byte, 16)
	if _, err = io.ReadFull(d.file, header); err != nil {
		return
	}
	m.Ver = bele.BeUint32(header)
	m.Typ = bele.BeUint32(header[4:])
	m.Len = bele.BeUint32(header[8:])
	m.Timestamp = bele.BeUint32(header[12:])
	m.Body = make([]byte, m.Len)
	_, err = io.ReadFull(d.file, m.Body)
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, typ: %s, len: %d, timestamp: %d, hex: %s",
		m.Ver, MediaType(m.Typ), m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(typ MediaType, ptsMs uint32, b []byte) []byte {
	ret := make([]byte, len(b)+16)
	bele.BePutUint32(ret, 1)                  // Ver
	bele.BePutUint32(ret[4:], uint32(typ))    // Typ
	bele.BePutUint32(ret[8:], uint32(len(b))) // Len
	bele.BePutUint32(ret[12:], ptsMs)         // Timestamp
	copy(ret[16:], b)
	return ret
}
