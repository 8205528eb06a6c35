// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"sync"

	"github.com/q191201771/lalts/pkg/mpegts"
)

// basePtsRendezvous 单槽位的base pts交接
//
// 视频Processor设置一次，只demux音频的Processor阻塞等待。Reset后重新等待下一次设置
type basePtsRendezvous struct {
	mu       sync.Mutex
	ready    chan struct{}
	set      bool
	position float64
	basePts  mpegts.Uint33
}

func newBasePtsRendezvous() *basePtsRendezvous {
	return &basePtsRendezvous{
		ready: make(chan struct{}),
	}
}

func (r *basePtsRendezvous) Publish(position float64, basePts mpegts.Uint33) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = position
	r.basePts = basePts
	if !r.set {
		r.set = true
		close(r.ready)
	}
}

func (r *basePtsRendezvous) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		r.set = false
		r.ready = make(chan struct{})
	}
}

// Get 不阻塞
func (r *basePtsRendezvous) Get() (position float64, basePts mpegts.Uint33, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position, r.basePts, r.set
}

// Wait 阻塞直到Publish或者abort被关闭
//
// @return ok: false表示被abort唤醒
func (r *basePtsRendezvous) Wait(abort <-chan struct{}) (position float64, basePts mpegts.Uint33, ok bool) {
	r.mu.Lock()
	ready := r.ready
	r.mu.Unlock()

	select {
	case <-ready:
		return r.Get()
	case <-abort:
		return 0, 0, false
	}
}
