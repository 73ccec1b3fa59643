// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package phrase

import (
	"bytes"
	"fmt"
	"text/template"
)

// promptTmpl asks for a single semicolon-separated line of short technical
// phrases. The response is validated by validateResponse before use.
var promptTmpl = template.Must(template.New("phrases").Parse(`You will receive a research paper abstract.

Your task:
- Extract {{.MaxTerms}} core technical keywords or short noun phrases (1-3 words each)
  that best represent the main topic and domain.
- The result MUST be a single line.
- Phrases MUST be separated by semicolons ` + "`;`" + `.
- Do NOT add explanations, bullet points, numbering, or newlines.
- Example output:
  molecular communication; nanonetworks; quorum sensing

Abstract:
{{.Abstract}}`))

type promptData struct {
	MaxTerms int
	Abstract string
}

// RenderPrompt returns the extraction prompt for one abstract.
func RenderPrompt(abstract string, maxTerms int) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, promptData{MaxTerms: maxTerms, Abstract: abstract}); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return buf.String(), nil
}
