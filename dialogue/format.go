package dialogue

import (
	"fmt"
	"strings"
)

func formatSystemPrompt(tpl, catalog, lang string) string {
	if tpl == "" {
		tpl = DefaultDialogueSystemPromptTemplate
	}
	switch strings.Count(tpl, "%s") {
	case 0:
		return tpl
	case 1:
		return fmt.Sprintf(tpl, lang)
	default:
		return fmt.Sprintf(tpl, catalog, lang)
	}
}
