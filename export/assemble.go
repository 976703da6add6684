package export

import (
	"github.com/flosch/pongo2/v6"
)

// CalendarStylesheet is inlined into every document shell.
const CalendarStylesheet = `.card { background: white; border: 1px solid #e5e7eb; border-radius: 8px; overflow: hidden; }
th, td { padding: 12px; border: 1px solid #e5e7eb; text-align: left; }
th { background: #f3f4f6; font-weight: 600; }
.event { padding: 8px; margin: 4px 0; border-radius: 4px; font-size: 12px; }`

const baseStylesheet = `* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: white; }`

const shellTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
{{ base_css|safe }}
{{ calendar_css|safe }}
</style>
</head>
<body>
{{ markup|safe }}
</body>
</html>
`

var shellTpl = pongo2.Must(pongo2.FromString(shellTemplate))

// Assemble wraps a markup fragment in the standalone calendar document.
// Markup is inserted verbatim.
func Assemble(markup string) (DocumentShell, error) {
	out, err := shellTpl.Execute(pongo2.Context{
		"base_css":     baseStylesheet,
		"calendar_css": CalendarStylesheet,
		"markup":       markup,
	})
	if err != nil {
		return "", NewError(KindInternal, "document assembly failed", err)
	}
	return DocumentShell(out), nil
}
