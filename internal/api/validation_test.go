package api

import "testing"

func TestValidateCreateAlertRequest(t *testing.T) {
	valid := CreateAlertRequest{
		Source:    "prometheus",
		Severity:  "high",
		Title:     "High CPU",
		Message:   "CPU above 90 percent",
		AlertType: "metrics",
	}
	if errs := Validate(valid); errs != nil {
		t.Errorf("expected valid request, got %v", errs)
	}
}

func TestValidateMissingFields(t *testing.T) {
	errs := Validate(CreateAlertRequest{})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	for _, field := range []string{"source", "severity", "title", "message", "alert_type"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestValidateOneOf(t *testing.T) {
	req := CreateAlertRequest{
		Source:    "prometheus",
		Severity:  "urgent",
		Title:     "High CPU",
		Message:   "CPU above 90 percent",
		AlertType: "metrics",
	}
	errs := Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["severity"]; !ok {
		t.Errorf("expected severity error, got %v", errs)
	}
}

func TestValidateCorrelateRequestMin(t *testing.T) {
	errs := Validate(CorrelateRequest{AlertIDs: []string{"only-one"}})
	if errs == nil {
		t.Fatal("expected validation error for fewer than two alert ids")
	}
}

func TestValidateFeedbackRequestRange(t *testing.T) {
	accurate := true
	if errs := Validate(FeedbackRequest{IsAccurate: &accurate, AccuracyRating: 0.5}); errs != nil {
		t.Errorf("expected valid feedback, got %v", errs)
	}
	if errs := Validate(FeedbackRequest{IsAccurate: &accurate, AccuracyRating: 1.5}); errs == nil {
		t.Error("expected error for rating above 1")
	}
	if errs := Validate(FeedbackRequest{AccuracyRating: 0.5}); errs == nil {
		t.Error("expected error for missing is_accurate")
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"AlertType":      "alert_type",
		"Source":         "source",
		"AccuracyRating": "accuracy_rating",
	}
	for in, want := range cases {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
