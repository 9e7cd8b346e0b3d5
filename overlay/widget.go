package overlay

import (
	"fmt"
	"html"
)

// Reserved element ids.
const (
	ContainerID = "lenus-ab-testing-container"
	PillID      = "lenus-ab-pill"
	TextID      = "lenus-ab-text"
	StyleID     = "lenus-ab-testing-styles"
)

const (
	classFadeOut = "lenus-ab-pill-out"
	classFadeIn  = "lenus-ab-pill-in"
)

const (
	iconSpinner = `<svg class="lenus-ab-icon" width="16" height="16" viewBox="0 0 24 24" fill="none" xmlns="http://www.w3.org/2000/svg"><circle cx="12" cy="12" r="10" stroke="currentColor" stroke-width="4" stroke-dasharray="30 30" stroke-dashoffset="25"><animateTransform attributeName="transform" attributeType="XML" type="rotate" from="0 12 12" to="360 12 12" dur="1s" repeatCount="indefinite"></animateTransform></circle></svg>`
	iconCheck   = `<svg class="lenus-ab-icon" width="16" height="16" viewBox="0 0 24 24" fill="none" xmlns="http://www.w3.org/2000/svg"><path d="M9 16.17L4.83 12l-1.42 1.41L9 19 21 7l-1.41-1.41L9 16.17z" fill="currentColor"></path></svg>`
	iconCross   = `<svg class="lenus-ab-icon" width="16" height="16" viewBox="0 0 24 24" fill="none" xmlns="http://www.w3.org/2000/svg"><path d="M19 6.41L17.59 5 12 10.59 6.41 5 5 6.41 10.59 12 5 17.59 6.41 19 12 13.41 17.59 19 19 17.59 13.41 12 19 6.41z" fill="currentColor"></path></svg>`
	iconError   = `<svg class="lenus-ab-icon" width="16" height="16" viewBox="0 0 24 24" fill="none" xmlns="http://www.w3.org/2000/svg"><path d="M12 2C6.48 2 2 6.48 2 12s4.48 10 10 10 10-4.48 10-10S17.52 2 12 2zm1 15h-2v-2h2v2zm0-4h-2V7h2v6z" fill="currentColor"></path></svg>`
	iconLink    = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" xmlns="http://www.w3.org/2000/svg"><path d="M19 19H5V5H12V3H5C3.89 3 3 3.9 3 5V19C3 20.1 3.89 21 5 21H19C20.1 21 21 20.1 21 19V12H19V19ZM14 3V5H17.59L7.76 14.83L9.17 16.24L19 6.41V10H21V3H14Z" fill="currentColor"></path></svg>`
)

// pillInner is the pill content for s. The text span keeps its id in every
// state so later updates can find it.
func pillInner(s State) string {
	return s.icon() + fmt.Sprintf(`<span id="%s">%s</span>`, TextID, html.EscapeString(s.Label()))
}

func pillMarkup(s State) string {
	return fmt.Sprintf(`<div class="%s" id="%s">%s</div>`, s.pillClass(), PillID, pillInner(s))
}

func sheetLink(sheetURL string) string {
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener" class="lenus-ab-link" title="Open A/B Testing Sheet">%s</a>`,
		html.EscapeString(sheetURL), iconLink)
}

// RenderWidget returns the container markup for the given layout, showing s.
func RenderWidget(layout Layout, s State, sheetURL string) string {
	if layout == LayoutForm {
		return fmt.Sprintf(`<div id="%s" class="row form-group form-group--small lenus-ab-testing-row form-page">`+
			`<label class="input__label row__column row__column--2" style="display: flex; align-items: center;">A/B Testing%s</label>`+
			`<div class="row__column">%s</div></div>`,
			ContainerID, sheetLink(sheetURL), pillMarkup(s))
	}
	return fmt.Sprintf(`<div id="%s" class="css-1utqmw">`+
		`<div class="css-b95f0i"><div class="css-hp68mp">`+
		`<h6 class="MuiTypography-root MuiTypography-subtitle2 css-y4s7ji" style="display: flex; align-items: center;">A/B Testing%s</h6>`+
		`</div></div>`+
		`<div class="css-uq7dtg">%s</div></div>`,
		ContainerID, sheetLink(sheetURL), pillMarkup(s))
}
