// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant is returned by LookupVariant for unrecognised names.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant is a system-prompt preset. The two panels of the app differ only
// in their variant.
type Variant struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	SystemPrompt string `json:"-"`
}

// Built-in system prompts.
const (
	DiaryPrompt = "당신은 하루 영농일지를 작성해주는 한국어 AI입니다. 하루 동안의 센서 변화, " +
		"제어장치 작동, CCTV 보안 상태, 작물 성장 등을 요약하고, 필요한 조치나 권장 사항을 " +
		"간결히 안내해 주세요. 영농일지 스타일로 답변을 구성하세요."

	HelperPrompt = "You are a helpful assistant for farming and plant care. " +
		"Answer questions in Korean about growing plants and crops."
)

var (
	// Diary writes the day's farm events up as a diary entry.
	Diary = Variant{Name: "diary", Title: "AI 영농일지", SystemPrompt: DiaryPrompt}

	// Helper answers plant-care questions.
	Helper = Variant{Name: "helper", Title: "스마트 농부 도우미", SystemPrompt: HelperPrompt}
)

// Variants returns the built-in presets in display order.
func Variants() []Variant {
	return []Variant{Diary, Helper}
}

// LookupVariant finds a preset by name, case-insensitively.
func LookupVariant(name string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, v := range Variants() {
		if v.Name == key {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// WithPrompt returns a copy of v using prompt, unless prompt is blank.
func (v Variant) WithPrompt(prompt string) Variant {
	if strings.TrimSpace(prompt) != "" {
		v.SystemPrompt = prompt
	}
	return v
}
