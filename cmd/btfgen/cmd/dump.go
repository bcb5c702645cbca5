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

package cmd

import (
	"fmt"
	"os"
	"regexp"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/btfgen/btfgen/cdump"
	"github.com/btfgen/btfgen/graph"
	"github.com/btfgen/btfgen/internal/btfelf"
)

func newDumpCmd() *cobra.Command {
	var (
		outputFile      string
		names           []string
		extraBlacklist  []string
		annotateTypeIDs bool
		debugComments   bool
	)

	c := &cobra.Command{
		Use:   "dump <elf-path>",
		Short: "Decode an ELF object's BTF section and emit an equivalent C header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], outputFile, names, viper.GetStringSlice("extra_blacklist"), annotateTypeIDs, debugComments)
		},
	}

	c.Flags().StringVar(&outputFile, "output_file", "", "write the header here instead of stdout")
	c.Flags().StringSliceVar(&names, "names", nil, "if set, only dump definitions whose name is in this list, plus the types they depend on")
	c.Flags().StringSliceVar(&extraBlacklist, "extra_blacklist", nil, "additional regexes of names to silently skip")
	c.Flags().BoolVar(&annotateTypeIDs, "annotate_type_ids", false, "append the originating BTF type id as a trailing comment")
	c.Flags().BoolVar(&debugComments, "debug_comments", false, "write skipped-but-harmless situations as comments in the output")

	return c
}

func runDump(path, outputFile string, names, extraBlacklist []string, annotateTypeIDs, debugComments bool) error {
	g, err := btfelf.Load(path)
	if err != nil {
		return err
	}
	log.V(1).Infof("btfgen: loaded %d types from %s", g.Count(), path)

	blacklist := cdump.DefaultBlacklist()
	for _, pat := range extraBlacklist {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("btfgen: invalid --extra_blacklist pattern %q: %w", pat, err)
		}
		blacklist = append(blacklist, re)
	}

	allow := make(map[string]bool, len(names))
	for _, n := range names {
		allow[n] = true
	}
	filter := func(id graph.ID, n graph.Node) bool {
		if len(allow) == 0 {
			return true
		}
		return allow[cdump.DefinitionName(n)]
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("btfgen: creating %s: %w", outputFile, err)
		}
		defer f.Close()
		out = f
	}

	driver := cdump.NewDriver(g, cdump.Config{
		Blacklist:       blacklist,
		AnnotateTypeIDs: annotateTypeIDs,
		DebugComments:   debugComments,
	})
	return driver.Dump(out, filter)
}
