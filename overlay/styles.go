package overlay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

const widgetCSS = `
.lenus-ab-pill {
	display: inline-flex;
	align-items: center;
	padding: 4px 12px;
	border-radius: 16px;
	font-size: 13px;
	font-weight: 500;
	height: 24px;
	width: fit-content;
	transition: opacity 125ms ease-in-out;
}
.lenus-ab-pill-out { opacity: 0; }
.lenus-ab-pill-in { opacity: 1; }
.lenus-ab-link {
	display: inline-flex;
	margin-left: 6px;
	color: #000;
	cursor: pointer;
	align-items: center;
	vertical-align: middle;
}
.lenus-ab-link svg { display: block; }
.lenus-ab-pill-enabled {
	background-color: rgba(16, 185, 129, 0.15);
	color: #047857;
}
.lenus-ab-pill-disabled {
	background-color: rgba(239, 68, 68, 0.15);
	color: #b91c1c;
}
.lenus-ab-pill-loading {
	background-color: rgba(176, 176, 176, 0.15);
	color: #666;
}
.lenus-ab-icon { margin-right: 8px; }
@keyframes lenus-ab-spin {
	0% { transform: rotate(0deg); }
	100% { transform: rotate(360deg); }
}
.form-page.lenus-ab-testing-row { margin-bottom: 16px; }
`

var (
	stylesOnce sync.Once
	stylesText string
	stylesErr  error
)

// Stylesheet returns the widget stylesheet, normalized by the CSS parser.
// Every qualified rule's selector group must compile.
func Stylesheet() (string, error) {
	stylesOnce.Do(func() {
		stylesText, stylesErr = buildStylesheet(widgetCSS)
	})
	return stylesText, stylesErr
}

func buildStylesheet(src string) (string, error) {
	sheet, err := parser.Parse(src)
	if err != nil {
		return "", fmt.Errorf("overlay: parse stylesheet: %w", err)
	}
	for _, rule := range sheet.Rules {
		if rule.Kind != cssast.QualifiedRule {
			continue
		}
		if len(rule.Declarations) == 0 {
			return "", fmt.Errorf("overlay: stylesheet rule %q has no declarations", rule.Prelude)
		}
		if _, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ",")); err != nil {
			return "", fmt.Errorf("overlay: stylesheet selector %q: %w", rule.Prelude, err)
		}
	}
	return sheet.String(), nil
}
