package funcexec

import "regexp"

var attrPattern = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

// ParseAttributes extracts key="value" pairs from the text of an opening tag.
// Values are taken verbatim; a repeated key keeps its last value.
func ParseAttributes(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}
