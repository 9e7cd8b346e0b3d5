package remotelist

import "testing"

func TestIsMember(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		table  Table
		id     string
		column int
		want   bool
	}{
		{"header skipped", Table{{"abc"}, {"def"}}, "abc", 0, false},
		{"header content irrelevant", Table{{"id"}, {"abc"}}, "abc", 0, true},
		{"single row is data", Table{{"abc"}}, "abc", 0, true},
		{"case insensitive", Table{{"id"}, {"abc-123"}}, "ABC-123", 0, true},
		{"cell case insensitive", Table{{"id"}, {"ABC-123"}}, "abc-123", 0, true},
		{"cell trimmed", Table{{"id"}, {"  abc "}}, "abc", 0, true},
		{"other column", Table{{"id", "x"}, {"nope", "abc"}}, "abc", 1, true},
		{"short row", Table{{"id", "x"}, {"abc"}}, "abc", 1, false},
		{"negative column", Table{{"id"}, {"abc"}}, "abc", -1, false},
		{"empty id", Table{{"id"}, {""}}, "", 0, false},
		{"empty table", Table{}, "abc", 0, false},
		{"substring is not a match", Table{{"id"}, {"abc-1234"}}, "abc-123", 0, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMember(tc.table, tc.id, tc.column); got != tc.want {
				t.Fatalf("IsMember(%v, %q, %d) = %v, want %v", tc.table, tc.id, tc.column, got, tc.want)
			}
		})
	}
}

func TestIsMemberIgnoresRowZero(t *testing.T) {
	t.Parallel()
	// whatever row 0 holds, it never decides the answer once a second row exists
	for _, header := range [][]string{{"abc"}, {"ABC"}, {}, {"abc", "abc"}} {
		table := Table{header, {"zzz"}}
		if IsMember(table, "abc", 0) {
			t.Fatalf("row 0 %v matched", header)
		}
	}
}
