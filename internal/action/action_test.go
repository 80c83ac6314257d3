package action

import "testing"

func TestParameterizedIDs(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{got: LinkConfirm(12, true), want: "link:confirm:12:accept"},
		{got: LinkConfirm(12, false), want: "link:confirm:12:reject"},
		{got: ListSend(3), want: "list:send:3"},
		{got: ListRespond(3, true), want: "list:resp:3:accept"},
		{got: ListItemToggle(3, 9, true), want: "list:item:3:9:done"},
		{got: ListItemToggle(3, 9, false), want: "list:item:3:9:todo"},
		{got: TaskRespond(7, false), want: "task:resp:7:reject"},
		{got: TaskDone(7), want: "task:done:7"},
		{got: TaskRescheduleOption(7, "plus1"), want: "task:resopt:7:plus1"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("action id = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestSplitAndParseID(t *testing.T) {
	parts := Split(ListItemToggle(3, 9, true))
	if len(parts) != 5 {
		t.Fatalf("parts = %v, want 5 segments", parts)
	}
	listID, ok := ParseID(parts[2])
	if !ok || listID != 3 {
		t.Fatalf("list id = %d ok=%v", listID, ok)
	}
	if _, ok := ParseID("abc"); ok {
		t.Fatal("expected parse failure for non-numeric segment")
	}
}
