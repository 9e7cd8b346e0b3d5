package browser

import (
	"strings"
	"testing"

	"abstatus/dom"
)

func TestInsertJSEscapesFragment(t *testing.T) {
	t.Parallel()
	js := insertJS(dom.Path{0, 1, 3}, nil, "<div id=\"x\">`${alert(1)}`</script></div>")
	if !strings.Contains(js, "walk([0,1,3])") {
		t.Fatalf("parent path not encoded: %s", js)
	}
	if !strings.Contains(js, "const beforePath = null;") {
		t.Fatalf("nil before must append: %s", js)
	}
	if !strings.Contains(js, `tpl.innerHTML = "\u003cdiv id=\"x\"\u003e`) {
		t.Fatalf("fragment not encoded as a string literal: %s", js)
	}
}

func TestInsertJSBefore(t *testing.T) {
	t.Parallel()
	js := insertJS(dom.Path{0, 1}, dom.Path{0, 1, 2}, "<p></p>")
	if !strings.Contains(js, "const beforePath = [0,1,2];") {
		t.Fatalf("before path not encoded: %s", js)
	}
}

func TestPatchJS(t *testing.T) {
	t.Parallel()
	js := patchJS(dom.Patch{Require: []string{"a", "b"}, ID: "b", Class: `x "y"`})
	for _, want := range []string{`for (const id of ["a","b"])`, `getElementById("b")`, `el.className = "x \"y\"";`, `const inner = "";`} {
		if !strings.Contains(js, want) {
			t.Errorf("patch script missing %s:\n%s", want, js)
		}
	}
	if js := patchJS(dom.Patch{ID: "a"}); !strings.Contains(js, "for (const id of [])") {
		t.Errorf("nil requirements should encode as an empty list:\n%s", js)
	}
}

func TestObserveJS(t *testing.T) {
	t.Parallel()
	js := observeJS(7, dom.Path{0, 1})
	for _, want := range []string{"walk([0,1])", "obs[7] = new MutationObserver", `window.` + bindingName + `("7")`, "childList: true, subtree: true"} {
		if !strings.Contains(js, want) {
			t.Errorf("observe script missing %s:\n%s", want, js)
		}
	}
	if js := observeJS(1, nil); !strings.Contains(js, "walk([])") {
		t.Errorf("nil root should observe the document:\n%s", js)
	}
	if js := disconnectJS(7); !strings.Contains(js, "obs[7].disconnect()") {
		t.Errorf("disconnect script: %s", js)
	}
}

func TestStyleAndExistsJS(t *testing.T) {
	t.Parallel()
	if js := existsJS(`a"b`); js != `document.getElementById("a\"b") !== null` {
		t.Fatalf("existsJS = %s", js)
	}
	js := styleJS("s", ".a { color: red; }")
	if !strings.Contains(js, `s.textContent = ".a { color: red; }";`) || !strings.Contains(js, `s.id = "s";`) {
		t.Fatalf("styleJS = %s", js)
	}
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()
	base := len(allocatorOptions(Options{}))
	if got := len(allocatorOptions(Options{ExecPath: "/bin/chrome", UserDataDir: t.TempDir()})); got != base+2 {
		t.Fatalf("expected exec path and profile options, got %d want %d", got, base+2)
	}
}
