package main

import (
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed"
)

// Shell scripts come from cobra's default completion command; this file
// completes flag values.

type completionFunc = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// completeEventTypes completes a comma-separated event type list, skipping
// types already typed or set on the flag. Candidates carry the typed prefix
// so every shell replaces the whole word.
func completeEventTypes(flagName string) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		parts := strings.Split(toComplete, ",")
		prefix := strings.Join(parts[:len(parts)-1], ",")
		if prefix != "" {
			prefix += ","
		}
		current := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))

		used := make(map[string]bool)
		for _, p := range parts[:len(parts)-1] {
			used[strings.ToLower(strings.TrimSpace(p))] = true
		}
		if vals, err := cmd.Flags().GetStringSlice(flagName); err == nil {
			for _, v := range vals {
				used[strings.ToLower(strings.TrimSpace(v))] = true
			}
		}

		var candidates []string
		for _, t := range ValidEventTypeNames() {
			if !used[t] && strings.HasPrefix(t, current) {
				candidates = append(candidates, prefix+t)
			}
		}
		return candidates, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}
}

// completeWhere completes the event field name being typed at the end of a
// --where expression.
func completeWhere(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	i := strings.LastIndexFunc(toComplete, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	head, word := toComplete[:i+1], toComplete[i+1:]

	var candidates []string
	for _, f := range killfeed.WhereFields() {
		if strings.HasPrefix(f, word) {
			candidates = append(candidates, head+f)
		}
	}
	return candidates, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
}

// registerCompletions attaches value completion to whichever of the known
// flags cmd defines.
func registerCompletions(cmd *cobra.Command) {
	funcs := map[string]completionFunc{
		"include-types": completeEventTypes("include-types"),
		"exclude-types": completeEventTypes("exclude-types"),
		"format":        cobra.FixedCompletions(slices.Sorted(maps.Keys(ValidFormats)), cobra.ShellCompDirectiveNoFileComp),
		"where":         completeWhere,
		"log-path": func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"log"}, cobra.ShellCompDirectiveFilterFileExt
		},
		"config": func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"yml", "yaml"}, cobra.ShellCompDirectiveFilterFileExt
		},
		"log-dir": func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
	}
	for name, fn := range funcs {
		if cmd.Flags().Lookup(name) != nil {
			_ = cmd.RegisterFlagCompletionFunc(name, fn)
		}
	}
}
