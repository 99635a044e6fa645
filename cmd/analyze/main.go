// Command analyze prints quick, human-readable statistics about every
// description YAML file in a directory: object kind and action counts,
// the number of compiled behaviour entries per action, level dimensions,
// and termination condition counts.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/griddy-sim/griddy/gdy"
	"github.com/griddy-sim/griddy/kernel/behaviour"
)

func main() {
	dir := "descriptions"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("error reading %s: %v\n", dir, err)
		os.Exit(1)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fmt.Printf("\n=== Analyzing %s ===\n", entry.Name())
		analyzeDescription(path)
	}
}

func analyzeDescription(path string) {
	desc, err := gdy.Load(path)
	if err != nil {
		fmt.Printf("error loading: %v\n", err)
		return
	}

	compiled, err := gdy.Compile(desc)
	if err != nil {
		fmt.Printf("error compiling: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", desc.Environment.Name)
	fmt.Printf("Object kinds: %d\n", len(desc.Objects))
	fmt.Printf("Actions: %d\n", len(desc.Actions))
	fmt.Printf("Terminations: %d\n", len(desc.Terminations))
	fmt.Printf("Levels: %d\n", len(compiled.Levels))

	for i, level := range compiled.Levels {
		fmt.Printf("  Level %d (%s): %dx%d, %d placements\n", i, level.Name, level.Width, level.Height, len(level.Placements))
	}

	counts := behaviourCountsByAction(compiled.Table)
	actions := make([]string, 0, len(counts))
	for name := range counts {
		actions = append(actions, name)
	}
	sort.Strings(actions)

	fmt.Println("Behaviour entries per action:")
	for _, name := range actions {
		fmt.Printf("  %s: %d (src,dst) pairs\n", name, counts[name])
	}

	if unused := unreferencedKinds(desc); len(unused) > 0 {
		fmt.Printf("⚠️  Object kinds with no action behaviour referencing them: %s\n", strings.Join(unused, ", "))
	} else {
		fmt.Println("✅ Every object kind participates in at least one action")
	}
}

func behaviourCountsByAction(table *behaviour.Table) map[string]int {
	counts := map[string]int{}
	for _, key := range table.Keys() {
		counts[key.Action]++
	}
	return counts
}

func unreferencedKinds(desc gdy.Description) []string {
	referenced := map[string]bool{}
	for _, action := range desc.Actions {
		for _, b := range action.Behaviours {
			for _, k := range b.Src.Type {
				referenced[k] = true
			}
			for _, k := range b.Dst.Type {
				referenced[k] = true
			}
		}
	}

	var unused []string
	for _, obj := range desc.Objects {
		if !referenced[obj.Name] {
			unused = append(unused, obj.Name)
		}
	}
	sort.Strings(unused)
	return unused
}
