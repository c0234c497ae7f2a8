// Command policy-diff compares two Feed Task YAML exports (the same
// format cmd/import-config reads) and prints, per task_id, whether
// task_type, config_data, or tags differ between them. It exists only
// so the repository's shape matches the companion tool spec.md
// describes; it does not touch the queue, the object store, or the
// state index.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type feedTaskDoc struct {
	TaskID     string   `yaml:"task_id"`
	TaskType   string   `yaml:"task_type"`
	Tags       []string `yaml:"tags"`
	ConfigData any      `yaml:"config_data"`
}

type exportFile struct {
	Tasks []feedTaskDoc `yaml:"tasks"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out *os.File) int {
	fs := flag.NewFlagSet("policy-diff", flag.ContinueOnError)
	leftPath := fs.String("left", "", "path to the first Feed Task YAML export")
	rightPath := fs.String("right", "", "path to the second Feed Task YAML export")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *leftPath == "" || *rightPath == "" {
		fmt.Fprintln(os.Stderr, "both -left and -right are required")
		return 1
	}

	left, err := loadExport(*leftPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *leftPath, err)
		return 1
	}
	right, err := loadExport(*rightPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *rightPath, err)
		return 1
	}

	diffs, err := diffExports(left, right)
	if err != nil {
		fmt.Fprintf(os.Stderr, "diffing exports: %v\n", err)
		return 1
	}
	if len(diffs) == 0 {
		fmt.Fprintln(out, "no differences")
		return 0
	}
	for _, d := range diffs {
		fmt.Fprintln(out, d)
	}
	return 0
}

func loadExport(path string) (map[string]feedTaskDoc, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, err
	}
	var doc exportFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	byID := make(map[string]feedTaskDoc, len(doc.Tasks))
	for _, t := range doc.Tasks {
		byID[t.TaskID] = t
	}
	return byID, nil
}

func diffExports(left, right map[string]feedTaskDoc) ([]string, error) {
	ids := make(map[string]struct{}, len(left)+len(right))
	for id := range left {
		ids[id] = struct{}{}
	}
	for id := range right {
		ids[id] = struct{}{}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var diffs []string
	for _, id := range sorted {
		l, lok := left[id]
		r, rok := right[id]
		switch {
		case lok && !rok:
			diffs = append(diffs, fmt.Sprintf("%s: removed", id))
		case !lok && rok:
			diffs = append(diffs, fmt.Sprintf("%s: added", id))
		default:
			d, err := diffTask(l, r)
			if err != nil {
				return nil, err
			}
			if d != "" {
				diffs = append(diffs, fmt.Sprintf("%s: %s", id, d))
			}
		}
	}
	return diffs, nil
}

func diffTask(l, r feedTaskDoc) (string, error) {
	var changed []string
	if l.TaskType != r.TaskType {
		changed = append(changed, fmt.Sprintf("task_type %q -> %q", l.TaskType, r.TaskType))
	}
	if !equalTags(l.Tags, r.Tags) {
		changed = append(changed, fmt.Sprintf("tags %v -> %v", l.Tags, r.Tags))
	}
	equalConfig, err := equalConfigData(l.ConfigData, r.ConfigData)
	if err != nil {
		return "", err
	}
	if !equalConfig {
		changed = append(changed, "config_data differs")
	}
	return joinChanges(changed), nil
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string{}, a...), append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func equalConfigData(a, b any) (bool, error) {
	ab, err := yaml.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := yaml.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}

func joinChanges(changed []string) string {
	if len(changed) == 0 {
		return ""
	}
	out := changed[0]
	for _, c := range changed[1:] {
		out += "; " + c
	}
	return out
}
