package http

import "testing"

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name          string
		offset, limit int
		want          []int
	}{
		{"first page", 0, 2, []int{1, 2}},
		{"middle page", 2, 2, []int{3, 4}},
		{"short last page", 4, 2, []int{5}},
		{"past the end", 10, 2, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, p := paginate(items, tt.offset, tt.limit)
			if got == nil {
				t.Fatal("expected non-nil page")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
			if p.Total != 5 || p.Offset != tt.offset || p.Limit != tt.limit {
				t.Errorf("unexpected pagination %+v", p)
			}
		})
	}
}

func TestWSSubject(t *testing.T) {
	tests := []struct {
		msg  wsMessage
		want string
		ok   bool
	}{
		{wsMessage{}, "emergency.dispatch.>", true},
		{wsMessage{Channel: "dispatches", ID: "d1"}, "emergency.dispatch.d1.>", true},
		{wsMessage{Channel: "locations"}, "emergency.ambulance.location.>", true},
		{wsMessage{Channel: "locations", ID: "a1"}, "emergency.ambulance.location.a1", true},
		{wsMessage{Channel: "weather"}, "", false},
	}
	for _, tt := range tests {
		got, ok := wsSubject(tt.msg)
		if got != tt.want || ok != tt.ok {
			t.Errorf("wsSubject(%+v) = %q, %v; want %q, %v", tt.msg, got, ok, tt.want, tt.ok)
		}
	}
}
