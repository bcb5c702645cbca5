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
	"github.com/kylelemons/godebug/pretty"

	"github.com/btfgen/btfgen/graph"
)

// DebugGraph pretty-prints every node of g, keyed by type id, for -v
// tracing and test failure messages.
func DebugGraph(g *graph.Graph) string {
	return pretty.Sprint(g.All())
}
