package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeArgs checks the required parameters of def and decodes the call
// arguments into out, whose fields carry `json` tags. Values already set on
// out act as defaults. Loose typing is accepted ("3" for an int, "true" for
// a bool). A nil return means success; otherwise the Result is an
// invalid_argument failure ready to hand back.
func DecodeArgs(def Definition, call Call, out any) *Result {
	var missing []string
	for _, name := range def.Parameters.Required {
		value, ok := call.Arguments[name]
		if !ok || value == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Fail(FailureInvalidArgument, "Error: missing required argument(s) for %s: %s", def.Name, strings.Join(missing, ", "))
	}

	args := make(map[string]any, len(call.Arguments))
	for key, value := range call.Arguments {
		if value == nil {
			continue
		}
		args[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Fail(FailureInternal, "Unexpected error: %v", err)
	}
	if err := decoder.Decode(args); err != nil {
		return Fail(FailureInvalidArgument, "Error: invalid arguments for %s: %v", def.Name, err)
	}
	return nil
}

// SingleStringParameter returns the name of the only required parameter
// when it is a string, so a bare text input can be mapped onto it.
func SingleStringParameter(def Definition) (string, bool) {
	if len(def.Parameters.Required) != 1 {
		return "", false
	}
	name := def.Parameters.Required[0]
	prop, ok := def.Parameters.Properties[name]
	if !ok || prop.Type != "string" {
		return "", false
	}
	return name, true
}

// Describe renders a definition as plain text listing its parameters, for
// runtimes that only accept a free-form tool description.
func Describe(def Definition) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(def.Description))
	if len(def.Parameters.Properties) == 0 {
		return b.String()
	}
	names := make([]string, 0, len(def.Parameters.Properties))
	for name := range def.Parameters.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := isRequired(def, names[i]), isRequired(def, names[j])
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})

	b.WriteString(" Input is a JSON object with keys: ")
	for i, name := range names {
		prop := def.Parameters.Properties[name]
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s (%s", name, prop.Type)
		if isRequired(def, name) {
			b.WriteString(", required")
		} else if prop.Default != nil {
			fmt.Fprintf(&b, ", default %v", prop.Default)
		}
		b.WriteString(")")
		if prop.Description != "" {
			b.WriteString(": " + prop.Description)
		}
	}
	b.WriteString(".")
	return b.String()
}

func isRequired(def Definition, name string) bool {
	for _, required := range def.Parameters.Required {
		if required == name {
			return true
		}
	}
	return false
}
