package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// output writes v to w in the format selected by --format. YAML output is
// derived from the JSON encoding so field names follow the json tags.
func output(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	switch flagFmt {
	case "json":
		_, err = fmt.Fprintln(w, string(data))

		return err
	case "yaml", "":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("convert to yaml: %w", err)
		}

		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", flagFmt)
	}
}

// blockStyle clears the flow and quoting styles the JSON source carries so
// the encoder emits block YAML. Scalars that would change type unquoted are
// still quoted by the encoder.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
