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

	"github.com/q191201771/lalts/pkg/base"
	"github.com/q191201771/lalts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "eng", NormalizeLanguage("ENG", LangCode3Char))
	assert.Equal(t, "eng", NormalizeLanguage("en", LangCode3Char))
	assert.Equal(t, "en", NormalizeLanguage("eng", LangCode2Char))
	assert.Equal(t, "fra", NormalizeLanguage(" fr ", LangCode3Char))
	assert.Equal(t, "", NormalizeLanguage("", LangCode3Char))
	assert.Equal(t, "1234", NormalizeLanguage("1234", LangCode3Char))
}

func newTestAudio() []mpegts.Component {
	return []mpegts.Component{
		{Pid: 0x101, Language: "eng", Format: base.StreamFormatAudioEsAac},
		{Pid: 0x102, Language: "fra", Format: base.StreamFormatAudioEsAc3},
		{Pid: 0x103, Language: "eng", Format: base.StreamFormatAudioEsEc3},
	}
}

func TestSelectAudioIndex(t *testing.T) {
	audio := newTestAudio()

	config := DefaultConfig()
	assert.Equal(t, -1, SelectAudioIndex(nil, &config))
	// 没有偏好时格式枚举值大的优先
	assert.Equal(t, 2, SelectAudioIndex(audio, &config))

	config.PreferredLanguages = []string{"fr"}
	assert.Equal(t, 1, SelectAudioIndex(audio, &config))

	config.DisableEc3 = true
	assert.Equal(t, 0, SelectAudioIndex(audio, &config))

	// 被禁用的格式即使是唯一的音频也不会被选中
	assert.Equal(t, -1, SelectAudioIndex(audio[1:], &config))
	assert.Equal(t, 1, SelectAudioIndex([]mpegts.Component{audio[2], audio[0]}, &config))

	config = DefaultConfig()
	config.PreferredLanguages = []string{"eng"}
	config.PreferredCodecs = []string{"ec-3", "mp4a.40.2"}
	assert.Equal(t, 2, SelectAudioIndex(audio, &config))

	config.PreferredCodecs = []string{"mp4a.40.2"}
	assert.Equal(t, 0, SelectAudioIndex(audio, &config))

	// 分数相同取靠前的
	config.PreferredLanguages = []string{"deu"}
	config.PreferredCodecs = []string{"opus"}
	assert.Equal(t, 0, SelectAudioIndex(audio, &config))
}

func TestBuildAudioTrackInfos(t *testing.T) {
	config := DefaultConfig()
	config.LangCodePreference = LangCode2Char
	infos := BuildAudioTrackInfos(newTestAudio(), "g1", &config)
	assert.Equal(t, 3, len(infos))
	assert.Equal(t, "mux-1", infos[1].Index)
	assert.Equal(t, "fr", infos[1].Language)
	assert.Equal(t, "g1", infos[1].GroupId)
	assert.Equal(t, "pid-258", infos[1].Name)
	assert.Equal(t, "ac-3", infos[1].Codec)
	assert.Equal(t, "ec-3", infos[2].Codec)
}
