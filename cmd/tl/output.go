package main

import (
	"encoding/json"
	"os"
)

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		FatalError("encoding JSON: %v", err)
	}
}
