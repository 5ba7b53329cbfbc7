package broker

import "testing"

func TestDecodeResult(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantKey string
	}{
		{"object", `{"accounts":[]}`, "accounts"},
		{"array wrapped", `[1,2,3]`, "data"},
		{"empty body", ``, "success"},
		{"whitespace", "  \n", "success"},
		{"not json", `OK`, "success"},
		{"json null", `null`, "success"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeResult([]byte(tc.body))
			if _, ok := got[tc.wantKey]; !ok {
				t.Errorf("DecodeResult(%q) = %v, want key %q", tc.body, got, tc.wantKey)
			}
		})
	}
}

func TestResult_IsError(t *testing.T) {
	if (Result{"positions": nil}).IsError() {
		t.Error("IsError() = true for plain result")
	}
	r := Result{"error": "boom"}
	if !r.IsError() || r.ErrorMessage() != "boom" {
		t.Errorf("IsError()/ErrorMessage() = %v/%q", r.IsError(), r.ErrorMessage())
	}
}

func TestSession_Valid(t *testing.T) {
	var nilSession *Session
	if nilSession.Valid() {
		t.Error("nil session reported valid")
	}
	if (&Session{Token: "a", SecurityToken: "b"}).Valid() {
		t.Error("session without account reported valid")
	}
	if !(&Session{Token: "a", SecurityToken: "b", AccountID: "c"}).Valid() {
		t.Error("complete session reported invalid")
	}
}
