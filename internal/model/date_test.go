package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateUnmarshal(t *testing.T) {
	var got struct {
		Visit Date `json:"visit_date"`
	}
	if err := json.Unmarshal([]byte(`{"visit_date": "2025-03-10"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Visit.Equal(NewDate(2025, time.March, 10)) {
		t.Errorf("visit = %s", got.Visit)
	}

	for _, in := range []string{`"10/03/2025"`, `"3/10/2025"`, `"yesterday"`, `20250310`} {
		if err := json.Unmarshal([]byte(`{"visit_date": `+in+`}`), &got); err == nil {
			t.Errorf("unmarshal %s: expected error, got %s", in, got.Visit)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	a := NewDate(2025, time.March, 10)
	b := a.AddDays(-30)
	if a.DaysSince(b) != 30 || !b.Before(a) || b.String() != "2025-02-08" {
		t.Errorf("a=%s b=%s since=%d", a, b, a.DaysSince(b))
	}
	if DateOf(time.Date(2025, 3, 10, 23, 59, 0, 0, time.FixedZone("NPT", 5*3600+45*60))) != a {
		t.Error("DateOf must keep the local calendar day")
	}
}
