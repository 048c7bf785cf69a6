package cli

import (
    "io"
    "strings"
    "testing"
)

func TestUnknownFlag_ShowsHelpAndUsageError(t *testing.T) {
    t.Parallel()
    for _, sub := range []string{"generate", "templates", "init", "version"} {
        root := NewRootCmd()
        root.SetOut(io.Discard)
        root.SetErr(io.Discard)
        root.SetArgs([]string{sub, "--unknown-flag"})

        err := root.Execute()
        if err == nil {
            t.Fatalf("%s: expected error for unknown flag", sub)
        }
        if _, ok := err.(usageError); !ok {
            t.Fatalf("%s: expected usage error, got %T: %v", sub, err, err)
        }
        if !strings.Contains(err.Error(), "unknown flag") || !strings.Contains(err.Error(), "Usage:") {
            t.Fatalf("%s: unexpected error text: %v", sub, err)
        }
    }
}
