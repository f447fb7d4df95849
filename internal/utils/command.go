package utils

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"al.essio.dev/pkg/shellescape"
)

// RenderString expands a text/template against data; strings without "{{" are returned as is.
func RenderString(text string, data interface{}) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tpl, err := template.New("value").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", text, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", text, err)
	}
	return buf.String(), nil
}

// GetCommandLine expands the command and each argument as templates.
func GetCommandLine(command string, args []string, data interface{}) (string, []string, error) {
	cmd, err := RenderString(command, data)
	if err != nil {
		return "", nil, err
	}
	processedArgs := make([]string, 0, len(args))
	for _, arg := range args {
		a, err := RenderString(arg, data)
		if err != nil {
			return "", nil, err
		}
		processedArgs = append(processedArgs, strings.TrimSpace(a))
	}
	return strings.TrimSpace(cmd), processedArgs, nil
}

// QuoteCommandLine renders a command for logs so it can be pasted into a shell.
func QuoteCommandLine(command string, args []string) string {
	return shellescape.QuoteCommand(append([]string{command}, args...))
}
