package remotelist

import (
	"errors"
	"reflect"
	"testing"
)

const sampleBody = "id,label\n\"abc-123\",\"Coach A\"\ndef-456,Coach B\n"

func TestParseSample(t *testing.T) {
	t.Parallel()
	got, err := Parse([]byte(sampleBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Table{
		{"id", "label"},
		{"abc-123", "Coach A"},
		{"def-456", "Coach B"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v, want %#v", got, want)
	}
	if !IsMember(got, "ABC-123", 0) {
		t.Fatal("expected ABC-123 to be a member")
	}
	if IsMember(got, "zzz", 0) {
		t.Fatal("expected zzz not to be a member")
	}
}

func TestParseEdges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want Table
	}{
		{"empty", "", Table{}},
		{"blank lines", "\n\na\n\n\nb\n", Table{{"a"}, {"b"}}},
		{"crlf", "a,b\r\nc,d\r\n", Table{{"a", "b"}, {"c", "d"}}},
		{"whitespace around quotes", `  "x"  , y `, Table{{"x", "y"}}},
		{"one layer of quotes", `""x""`, Table{{`"x"`}}},
		{"lone leading quote", `"x`, Table{{"x"}}},
		{"row of empty cells", ",,\na", Table{{"a"}}},
		{"partially empty row kept", ",b", Table{{"", "b"}}},
		// documented limitation: quoted commas split
		{"quoted comma splits", `"a,b",c`, Table{{"a", "b", "c"}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse([]byte(tc.in))
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseInvalidUTF8(t *testing.T) {
	t.Parallel()
	body := []byte("id,label\nabc-123,Caf\xe9 A\ndef-456,B\n")
	got, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Table{{"id", "label"}, {"abc-123", "Caf\uFFFD A"}, {"def-456", "B"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v, want %#v", got, want)
	}
	if !IsMember(got, "ABC-123", 0) {
		t.Fatal("id column must still match next to a badly encoded cell")
	}

	_, err = ParseStrict(body)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("strict parsing should reject invalid UTF-8, got %v", err)
	}
}

func TestParseStrict(t *testing.T) {
	t.Parallel()
	got, err := ParseStrict([]byte("id,label\n\"a,b\",\"say \"\"hi\"\"\"\n\nc\n"))
	if err != nil {
		t.Fatalf("ParseStrict: %v", err)
	}
	want := Table{{"id", "label"}, {"a,b", `say "hi"`}, {"c"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseStrict = %#v, want %#v", got, want)
	}

	_, err = ParseStrict([]byte("a,\"b\nc"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for unterminated quote, got %v", err)
	}
}
