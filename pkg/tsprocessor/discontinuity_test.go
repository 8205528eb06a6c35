// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"testing"

	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestPackAdaptationOnly(t *testing.T) {
	b := packAdaptationOnly(0x1234, 5, afFlagDiscontinuity, nil, 0)
	assert.Equal(t, mpegts.PacketSize, len(b))
	assert.Equal(t, uint16(0x1234), mpegts.Pid(b))
	assert.Equal(t, false, mpegts.IsPayloadUnitStart(b))
	assert.Equal(t, false, mpegts.HasPayload(b))
	assert.Equal(t, false, mpegts.HasPcr(b))
	assert.Equal(t, uint8(0x25), b[3])
	assert.Equal(t, uint8(183), b[4])
	assert.Equal(t, uint8(afFlagDiscontinuity), b[5])
	assert.Equal(t, uint8(0xff), b[187])

	pcr := mpegts.NewUint33(890000)
	b = packAdaptationOnly(0x100, 0, 0, &pcr, 4)
	assert.Equal(t, 4+mpegts.PacketSize, len(b))
	packet := b[4:]
	assert.Equal(t, uint8(0x47), packet[0])
	assert.Equal(t, true, mpegts.HasPcr(packet))
	assert.Equal(t, pcr, mpegts.ReadPcr(packet[6:]))
	assert.Equal(t, uint8(0xff), packet[12])
}
