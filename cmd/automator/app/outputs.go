package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
)

// output is one step output of a GitHub Actions run.
type output struct {
	Name  string
	Value string
}

// writeOutputs appends outputs to the file named by GITHUB_OUTPUT. An empty
// path is not an error; the CLI also runs outside of Actions.
func writeOutputs(path string, outputs []output) error {
	if path == "" {
		return nil
	}

	var sb strings.Builder
	for _, o := range outputs {
		if strings.ContainsAny(o.Value, "\r\n") {
			delimiter := "automator_" + strings.ReplaceAll(o.Name, "-", "_")
			fmt.Fprintf(&sb, "%s<<%s\n%s\n%s\n", o.Name, delimiter, o.Value, delimiter)
			continue
		}
		fmt.Fprintf(&sb, "%s=%s\n", o.Name, o.Value)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return errors.WrapIO("write", path, err)
	}
	return errors.WrapIO("close", path, f.Close())
}
