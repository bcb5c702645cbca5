// Copyright 2024 The btfgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cdump

import "regexp"

// DefaultBlacklist returns the initial identifier blacklist (spec §6): a
// fixed regex set matching entities the emitter should silently skip, both
// as forward declarations and as definitions. It is extensible by
// configuration rather than a single compile-time constant, per spec §9 --
// see Config.Blacklist and cmd/btfgen's --extra_blacklist flag.
func DefaultBlacklist() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^__builtin_va_list$`),
	}
}
