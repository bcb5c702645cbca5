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

import (
	"fmt"

	"github.com/btfgen/btfgen/graph"
)

// ForwardDeclError reports an anonymous composite reached while the
// forward-declaration pass (C4) was already emitting an ancestor: the
// caller cannot forward-declare it because it has no tag (spec §7).
type ForwardDeclError struct {
	ID   graph.ID
	Node graph.Node
}

func (e *ForwardDeclError) Error() string {
	return fmt.Sprintf("btfgen: anonymous composite loop forward-declaring type id %d (%T)", e.ID, e.Node)
}
