package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/airbusgeo/geotiler"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"
)

// applyConfigFile sets the flags of cmd that were not given on the command
// line from the yaml file at path. Keys are flag names. Keys that are not
// flags of cmd are ignored, so one file can serve several commands.
func applyConfigFile(cmd *cobra.Command, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	ignored, err := applyConfig(cmd.Flags(), values)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if len(ignored) > 0 {
		geotiler.Logger(cmd.Context()).Sugar().Debugf("config keys not used by %s: %v", cmd.Name(), ignored)
	}
	return nil
}

func applyConfig(flags *pflag.FlagSet, values map[string]interface{}) ([]string, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var ignored []string
	for _, k := range keys {
		f := flags.Lookup(k)
		if f == nil {
			ignored = append(ignored, k)
			continue
		}
		if f.Changed || k == "config" {
			continue
		}
		var vals []interface{}
		switch v := values[k].(type) {
		case nil:
			continue
		case []interface{}:
			vals = v
		default:
			vals = []interface{}{v}
		}
		for _, v := range vals {
			if err := f.Value.Set(configString(v)); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return ignored, nil
}

func configString(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
