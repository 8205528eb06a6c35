// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package tsprocessor

type Config struct {
	TtsSize int `json:"tts_size"` // 每个TS packet前的时间戳前缀长度，0或4

	ThrottleEnable                  bool `json:"throttle_enable"`
	ThrottleMaxDelayMs              int  `json:"throttle_max_delay_ms"`
	ThrottleMaxDiffSegmentsMs       int  `json:"throttle_max_diff_segments_ms"`
	ThrottleDelayIgnoredMs          int  `json:"throttle_delay_ignored_ms"`
	ThrottleDelayForDiscontinuityMs int  `json:"throttle_delay_for_discontinuity_ms"`

	// ApparentFrameRate 快进快退输出的帧率
	ApparentFrameRate int `json:"apparent_frame_rate"`

	DemuxAudioBeforeVideo bool `json:"demux_audio_before_video"`
	AudioOnlyPlayback     bool `json:"audio_only_playback"` // 为true时只demux音频的Processor不等待视频的base pts
	ApplyOffset           bool `json:"apply_offset"`
	TrickExcludeAudio     bool `json:"trick_exclude_audio"`
	CheckContinuity       bool `json:"check_continuity"`
	PublishMuxedAudio     bool `json:"publish_muxed_audio"`

	PreferredLanguages []string `json:"preferred_languages"`
	PreferredCodecs    []string `json:"preferred_codecs"` // 例如 "ec-3", "mp4a.40.2"
	DisableEc3         bool     `json:"disable_ec3"`
	DisableAtmos       bool     `json:"disable_atmos"`

	// LangCodePreference 音频语言的规范化方式，"3char"或"2char"
	LangCodePreference string `json:"lang_code_preference"`
}

const (
	LangCode3Char = "3char"
	LangCode2Char = "2char"
)

func DefaultConfig() Config {
	return Config{
		TtsSize:                         0,
		ThrottleEnable:                  true,
		ThrottleMaxDelayMs:              DefaultThrottleMaxDelayMs,
		ThrottleMaxDiffSegmentsMs:       DefaultThrottleMaxDiffSegmentsMs,
		ThrottleDelayIgnoredMs:          DefaultThrottleDelayIgnoredMs,
		ThrottleDelayForDiscontinuityMs: DefaultThrottleDelayForDiscontinuityMs,
		ApparentFrameRate:               FixedFrameRate,
		ApplyOffset:                     true,
		TrickExcludeAudio:               true,
		LangCodePreference:              LangCode3Char,
	}
}

type ModOption func(config *Config)
