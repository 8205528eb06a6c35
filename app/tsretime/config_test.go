// Copyright 2026, Chef.  All rights reserved.
// https://github.com/q191201771/lalts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/lalts/pkg/tsprocessor"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

func writeConf(t *testing.T, content string) string {
	filename := filepath.Join(t.TempDir(), "tsretime.conf.json")
	assert.Equal(t, nil, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoadConf(t *testing.T) {
	config, err := LoadConf("")
	assert.Equal(t, nil, err)
	assert.Equal(t, nazalog.LevelInfo, config.Log.Level)
	assert.Equal(t, true, config.Log.IsToStdout)
	assert.Equal(t, false, config.Processor.ThrottleEnable)
	assert.Equal(t, tsprocessor.FixedFrameRate, config.Processor.ApparentFrameRate)
	assert.Equal(t, true, config.Processor.TrickExcludeAudio)

	config, err = LoadConf(writeConf(t, fmt.Sprintf(`{
  "conf_version": "v0.1.0",
  "log": {"level": %d, "is_to_stdout": false},
  "processor": {"throttle_enable": true, "tts_size": 4, "preferred_languages": ["fra", "eng"]}
}`, int(nazalog.LevelWarn))))
	assert.Equal(t, nil, err)
	assert.Equal(t, "v0.1.0", config.ConfVersion)
	assert.Equal(t, nazalog.LevelWarn, config.Log.Level)
	assert.Equal(t, false, config.Log.IsToStdout)
	assert.Equal(t, true, config.Processor.ThrottleEnable)
	assert.Equal(t, 4, config.Processor.TtsSize)
	assert.Equal(t, []string{"fra", "eng"}, config.Processor.PreferredLanguages)
	assert.Equal(t, tsprocessor.DefaultThrottleMaxDelayMs, config.Processor.ThrottleMaxDelayMs)

	_, err = LoadConf(writeConf(t, `{"processor": {"tts_size": 3}}`))
	assert.IsNotNil(t, err)
	_, err = LoadConf(writeConf(t, `{`))
	assert.IsNotNil(t, err)
	_, err = LoadConf(filepath.Join(t.TempDir(), "not_exist.json"))
	assert.IsNotNil(t, err)
}

func TestParsePlayMode(t *testing.T) {
	mode, err := parsePlayMode("retimestamp-ionly")
	assert.Equal(t, nil, err)
	assert.Equal(t, tsprocessor.PlayModeRetimestampIonly, mode)
	_, err = parsePlayMode("fast")
	assert.IsNotNil(t, err)
}

func TestSplitSegments(t *testing.T) {
	content := make([]byte, 188*5+10)
	segments := splitSegments(content, 188, 2)
	assert.Equal(t, 3, len(segments))
	assert.Equal(t, 188*2, len(segments[0]))
	assert.Equal(t, 188, len(segments[2]))
}
