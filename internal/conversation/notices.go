// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TruncationNotice follows a reply that appears to have been cut off.
const TruncationNotice = "응답이 길어져 일부가 생략되었습니다. 더 자세한 정보를 원하시면 질문을 나눠서 물어보세요."

// RetryNotice tells the user the n-th attempt was rate limited and the
// next one starts after delay.
func RetryNotice(delay time.Duration, n, maxRetries int) string {
	secs := strconv.FormatFloat(delay.Seconds(), 'f', -1, 64)
	return fmt.Sprintf("요청 한도를 초과했습니다. %s초 후 재시도 중입니다... (%d/%d)", secs, n, maxRetries)
}

// QuotaNotice ends a submission whose every attempt was rate limited.
func QuotaNotice(waitSeconds int) string {
	return fmt.Sprintf("죄송합니다. 요청 한도를 초과했습니다. %d초 후 다시 시도해주세요. "+
		"Open AI 계정의 Tier를 확인하거나, 다른 앱에서 동일한 API 키를 사용 중인지 확인해주세요.", waitSeconds)
}

// ErrorNotice ends a submission that failed for any reason other than
// rate limiting.
func ErrorNotice(detail string) string {
	return "죄송합니다. 응답을 생성하는 중 오류가 발생했습니다. 오류 메시지: " + detail
}

// IsTruncated reports whether reply lacks terminal punctuation. Replies
// ending in a closing quote or parenthesis count as truncated too.
func IsTruncated(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return true
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return false
	}
	return true
}
