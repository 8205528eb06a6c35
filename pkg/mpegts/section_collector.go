// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"fmt"

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// SectionCollector 把跨多个TS packet的PSI section按continuity_counter拼接完整
//
// 只要出现不连续，当前正在拼接的section整体丢弃，等待下一个payload_unit_start
type SectionCollector struct {
	maxSectionLength int

	buf    []byte
	total  int
	nextCc uint8
}

func NewSectionCollector(maxSectionLength int) *SectionCollector {
	return &SectionCollector{
		maxSectionLength: maxSectionLength,
	}
}

func (c *SectionCollector) Active() bool {
	return c.total != 0
}

func (c *SectionCollector) Reset() {
	c.buf = c.buf[:0]
	c.total = 0
}

// Start 处理section的首个packet
//
// @param data: 从table_id开始，到packet结尾
// @param cc:   当前packet的continuity_counter
//
// @return section: 非nil时表示section在一个packet内就完整了
func (c *SectionCollector) Start(data []byte, cc uint8) (section []byte, err error) {
	c.Reset()
	if len(data) < 3 {
		return nil, base.NewErrShortBuffer(3, len(data), "section header")
	}
	sl := int(bele.BeUint16(data[1:]) & 0x0fff)
	total := 3 + sl
	if total <= len(data) {
		return data[:total], nil
	}
	if sl > c.maxSectionLength {
		return nil, fmt.Errorf("%w. oversized section. section_length=%d, max=%d", base.ErrPsiSection, sl, c.maxSectionLength)
	}
	c.buf = append(c.buf, data...)
	c.total = total
	c.nextCc = (cc + 1) & 0x0f
	return nil, nil
}

// Continue 处理section的后续packet
//
// @param data: payload，不包含TS header和adaptation
//
// @return section: 非nil时表示section拼接完成
func (c *SectionCollector) Continue(data []byte, cc uint8) (section []byte, err error) {
	if !c.Active() {
		return nil, nil
	}
	if (cc+1)&0x0f == c.nextCc {
		// 现网中存在同一个PMT的所有packet使用同一个cc的流，容忍这种情况
		Log.Warnf("next packet of multi-packet section has repeated continuity counter. expected=%d, actual=%d", c.nextCc, cc)
		c.nextCc = cc
	}
	if cc != c.nextCc {
		expected := c.nextCc
		c.Reset()
		return nil, fmt.Errorf("%w. continuity mismatch while collecting section. expected=%d, actual=%d", base.ErrPsiSection, expected, cc)
	}

	need := c.total - len(c.buf)
	if len(data) > need {
		data = data[:need]
	}
	c.buf = append(c.buf, data...)
	if len(c.buf) == c.total {
		section = c.buf
		c.buf = nil
		c.total = 0
		return section, nil
	}
	c.nextCc = (cc + 1) & 0x0f
	return nil, nil
}
