package domain

import "testing"

func TestFetchOutcome_IsRateLimitSignal(t *testing.T) {
	tests := []struct {
		name    string
		outcome FetchOutcome
		want    bool
	}{
		{"forbidden", HTTPError(403), true},
		{"timeout", Timeout("read"), true},
		{"server error", HTTPError(500), false},
		{"not found", HTTPError(404), false},
		{"network", NetworkError("refused"), false},
		{"empty", EmptyResponse(), false},
		{"missing url", URLNotFound(), false},
		{"success", Success("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.IsRateLimitSignal(); got != tt.want {
				t.Errorf("IsRateLimitSignal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCycleResult_Status(t *testing.T) {
	ok := SatelliteOutcome{Name: "A", Outcome: Success("l1")}
	bad := SatelliteOutcome{Name: "B", Outcome: HTTPError(403)}

	all := CycleResult{Outcomes: []SatelliteOutcome{ok, ok}, Successes: 2}
	if all.Status() != CycleSuccess {
		t.Errorf("expected success, got %s", all.Status())
	}

	partial := CycleResult{Outcomes: []SatelliteOutcome{bad, ok}, Successes: 1}
	if partial.Status() != CyclePartial {
		t.Errorf("expected partial, got %s", partial.Status())
	}
	if partial.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", partial.Failures())
	}

	none := CycleResult{Outcomes: []SatelliteOutcome{bad}}
	if none.Status() != CycleFailed || none.WriteWorthy() {
		t.Errorf("expected failed and not write-worthy, got %s", none.Status())
	}
}

func TestSuccess_LengthCountsCharacters(t *testing.T) {
	o := Success("ÅÖ")
	if o.Length != 2 {
		t.Errorf("Length = %d, want 2", o.Length)
	}
}
