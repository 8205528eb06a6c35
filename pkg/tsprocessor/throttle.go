// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

import (
	"time"

	"github.com/q191201771/lalts/pkg/mpegts"
)

// throttler 根据内容时间和真实时间的差值控制输出速度，不让内容时间超前太多
//
// 只负责计算，sleep由Processor在释放锁之后进行
type throttler struct {
	maxDelayMs              int64
	maxDiffSegmentsMs       int64
	delayIgnoredMs          int64
	delayForDiscontinuityMs int64

	haveBase      bool
	baseRealMs    int64
	baseContentMs int64
	haveLast      bool
	lastRealMs    int64
	lastContentMs int64

	apparentFrameRate int64
	lastFrameRealMs   int64
}

func newThrottler(config *Config) *throttler {
	t := &throttler{
		maxDelayMs:              int64(config.ThrottleMaxDelayMs),
		maxDiffSegmentsMs:       int64(config.ThrottleMaxDiffSegmentsMs),
		delayIgnoredMs:          int64(config.ThrottleDelayIgnoredMs),
		delayForDiscontinuityMs: int64(config.ThrottleDelayForDiscontinuityMs),
		apparentFrameRate:       int64(config.ApparentFrameRate),
	}
	if t.apparentFrameRate <= 0 {
		t.apparentFrameRate = FixedFrameRate
	}
	return t
}

// setup 根据segment时长调整参数
func (t *throttler) setup(segmentDurationMs int64) {
	if segmentDurationMs < 0 {
		segmentDurationMs = -segmentDurationMs
	}
	t.maxDelayMs = segmentDurationMs + DefaultThrottleDelayIgnoredMs
	t.maxDiffSegmentsMs = t.maxDelayMs
	t.delayIgnoredMs = DefaultThrottleDelayIgnoredMs
	t.delayForDiscontinuityMs = segmentDurationMs * 10
}

// invalidate 被abort或者需要重新建立时间基准
func (t *throttler) invalidate() {
	t.haveBase = false
	t.haveLast = false
}

func (t *throttler) resetFramePacing() {
	t.lastFrameRealMs = 0
}

// contentDelay
//
// @param contentMs: 内容时间，单位毫秒
// @param nowMs:     当前真实时间，单位毫秒
//
// @return 需要sleep的毫秒数，0表示不需要
func (t *throttler) contentDelay(contentMs, nowMs int64) (sleepMs int64) {
	if t.haveBase && t.haveLast {
		contentDiff := contentMs - t.lastContentMs
		realDiff := nowMs - t.lastRealMs
		switch {
		case contentDiff > 0 && contentDiff < t.maxDiffSegmentsMs && realDiff > 0 && realDiff < t.maxDiffSegmentsMs:
			contentDiff = contentMs - t.baseContentMs
			realDiff = nowMs - t.baseRealMs
			if realDiff > 0 && realDiff < contentDiff {
				sleepMs = contentDiff - realDiff - t.delayIgnoredMs
				if sleepMs > t.maxDelayMs {
					Log.Debugf("throttle cap %d to %d ms", sleepMs, t.maxDelayMs)
					sleepMs = t.maxDelayMs
				}
				if sleepMs < 0 {
					sleepMs = 0
				}
			}
		case contentDiff < -t.delayForDiscontinuityMs || contentDiff > t.delayForDiscontinuityMs:
			Log.Infof("content time diff %d beyond threshold %d, probable pts discontinuity", contentDiff, t.delayForDiscontinuityMs)
			t.haveBase = false
		default:
			Log.Debugf("out of throttle window. content diff=%d, real diff=%d", contentDiff, realDiff)
		}
	}

	if !t.haveBase {
		t.haveBase = true
		t.baseRealMs = nowMs
		t.baseContentMs = contentMs
	}
	t.haveLast = true
	t.lastRealMs = nowMs
	t.lastContentMs = contentMs
	return
}

// frameDelay demux快进快退时没有内容时间，按固定帧率输出
func (t *throttler) frameDelay(nowMs int64) (sleepMs int64) {
	if t.lastFrameRealMs != 0 {
		next := t.lastFrameRealMs + 1000/t.apparentFrameRate
		if next > nowMs {
			sleepMs = next - nowMs
		}
	}
	t.lastFrameRealMs = nowMs + sleepMs
	return
}

func nowMs() int64 {
	return Clock.Now().UnixNano() / 1e6
}

// sleep 可以被abort提前唤醒
//
// @return aborted
func sleep(ms int64, abort <-chan struct{}) bool {
	if ms <= 0 {
		return false
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-abort:
		return true
	}
}

// doThrottle 每个segment调用一次
//
// @return aborted
func (p *Processor) doThrottle() bool {
	var contentPts mpegts.Uint33
	haveContent := false
	if p.playRate != 1 {
		contentPts, haveContent = p.throttlePts, p.haveThrottlePts
	} else {
		contentPts, haveContent = p.actualStartPts, p.haveActualStartPts
	}

	var sleepMs int64
	switch {
	case haveContent:
		sleepMs = p.throttle.contentDelay(int64(contentPts.Value()/90), nowMs())
	case p.demux && p.playRate != 1:
		sleepMs = p.throttle.frameDelay(nowMs())
	default:
		Log.Debugf("[%s] content time not updated yet.", p.uniqueKey)
		return false
	}
	if sleepMs <= 0 {
		return false
	}
	Log.Tracef("[%s] throttle sleep %d ms.", p.uniqueKey, sleepMs)
	if p.sleepUnlocked(sleepMs) {
		p.throttle.invalidate()
		return true
	}
	return false
}
