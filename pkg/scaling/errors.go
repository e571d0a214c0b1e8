/*
Copyright 2026 The Scale-to-Zero Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scaling

import (
	"errors"
	"fmt"
	"strings"
)

// rateLimitedPrefix is part of the contract: callers recognize it to
// suppress logging for an expected, frequent condition instead of
// treating rate limiting as an error worth reporting.
const rateLimitedPrefix = "Rate Limited: Function "

// RateLimitedError is returned by Engine.ScaleUp when invoked again for
// the same service IP within the rate-limit window.
type RateLimitedError struct {
	ServiceIP string
	Window    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%scan only be called once every %s per service_ip %s", rateLimitedPrefix, e.Window, e.ServiceIP)
}

// IsRateLimited reports whether err is (or wraps) a rate-limit condition,
// either by type or by the message prefix contract callers have relied
// on since the source this was ported from.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return true
	}
	return strings.HasPrefix(err.Error(), rateLimitedPrefix)
}
