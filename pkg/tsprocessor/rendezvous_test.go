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
	"time"

	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestBasePtsRendezvous(t *testing.T) {
	r := newBasePtsRendezvous()
	_, _, ok := r.Get()
	assert.Equal(t, false, ok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Publish(3.5, mpegts.NewUint33(45000))
	}()
	position, basePts, ok := r.Wait(make(chan struct{}))
	assert.Equal(t, true, ok)
	assert.Equal(t, 3.5, position)
	assert.Equal(t, mpegts.NewUint33(45000), basePts)

	// 重复设置以最后一次为准
	r.Publish(4, mpegts.NewUint33(90000))
	position, basePts, ok = r.Wait(nil)
	assert.Equal(t, true, ok)
	assert.Equal(t, float64(4), position)
	assert.Equal(t, mpegts.NewUint33(90000), basePts)

	r.Reset()
	_, _, ok = r.Get()
	assert.Equal(t, false, ok)
	abort := make(chan struct{})
	close(abort)
	_, _, ok = r.Wait(abort)
	assert.Equal(t, false, ok)

	r.Reset()
	r.Publish(5, mpegts.NewUint33(1))
	_, _, ok = r.Wait(make(chan struct{}))
	assert.Equal(t, true, ok)
}
