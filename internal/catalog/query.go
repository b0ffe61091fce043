package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"

	"github.com/opencode-ai/agentcmd/pkg/types"
)

// Query runs a jq program over the JSON form of infos and prints each
// result on its own line. Strings print raw; other values print as compact
// JSON, and null prints nothing.
func Query(w io.Writer, infos []types.CommandInfo, program string) error {
	q, err := gojq.Parse(program)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return fmt.Errorf("compile query: %w", err)
	}

	// gojq works on plain JSON values, not structs.
	raw, err := json.Marshal(nonNil(infos))
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		switch val := v.(type) {
		case error:
			return fmt.Errorf("query: %w", val)
		case nil:
		case string:
			fmt.Fprintln(w, val)
		default:
			out, err := json.Marshal(val)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(out))
		}
	}
}
