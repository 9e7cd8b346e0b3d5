package browser

import (
	"encoding/json"
	"fmt"

	"abstatus/dom"
)

// walkJS resolves a dom.Path through document.children.
const walkJS = `const walk = (p) => { let n = document; for (const i of p) { n = n && n.children[i]; } return n || null; };`

// lit encodes v as a JavaScript literal.
func lit(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func pathLit(p dom.Path) string {
	if p == nil {
		return "null"
	}
	return lit([]int(p))
}

func existsJS(id string) string {
	return fmt.Sprintf(`document.getElementById(%s) !== null`, lit(id))
}

func insertJS(parent, before dom.Path, fragment string) string {
	return fmt.Sprintf(`(() => {
%s
const parent = walk(%s);
if (!parent) return "no parent element";
const beforePath = %s;
let before = null;
if (beforePath !== null) {
	before = walk(beforePath);
	if (!before || before.parentNode !== parent) return "reference element is not a child of parent";
}
const tpl = document.createElement("template");
tpl.innerHTML = %s;
parent.insertBefore(tpl.content, before);
return "";
})()`, walkJS, pathLit(parent), pathLit(before), lit(fragment))
}

func styleJS(id, css string) string {
	return fmt.Sprintf(`(() => {
if (document.getElementById(%[1]s)) return;
const s = document.createElement("style");
s.id = %[1]s;
s.textContent = %[2]s;
(document.head || document.documentElement).appendChild(s);
})()`, lit(id), lit(css))
}

func patchJS(p dom.Patch) string {
	req := p.Require
	if req == nil {
		req = []string{}
	}
	return fmt.Sprintf(`(() => {
for (const id of %s) { if (!document.getElementById(id)) return false; }
const el = document.getElementById(%s);
if (!el) return false;
el.className = %s;
const inner = %s;
if (inner !== "") el.innerHTML = inner;
return true;
})()`, lit(req), lit(p.ID), lit(p.Class), lit(p.Inner))
}

func observeJS(id int, root dom.Path) string {
	if root == nil {
		root = dom.Path{}
	}
	return fmt.Sprintf(`(() => {
%s
const root = walk(%s);
if (!root) return false;
const obs = (window.__abstatusObservers = window.__abstatusObservers || {});
if (obs[%[3]d]) obs[%[3]d].disconnect();
obs[%[3]d] = new MutationObserver(() => { window.%[4]s(%[5]s); });
obs[%[3]d].observe(root, { childList: true, subtree: true });
return true;
})()`, walkJS, pathLit(root), id, bindingName, lit(fmt.Sprint(id)))
}

func disconnectJS(id int) string {
	return fmt.Sprintf(`(() => {
const obs = window.__abstatusObservers || {};
if (obs[%[1]d]) { obs[%[1]d].disconnect(); delete obs[%[1]d]; }
})()`, id)
}
