package validator

import (
	"strings"
	"testing"
)

type issuePayload struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Expiry int64  `json:"expiry" validate:"gte=0"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(issuePayload{Expiry: -1})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	ve, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := make(map[string]string, len(ve))
	for _, failure := range ve {
		fields[failure.Field] = failure.Tag
	}

	if fields["user_id"] != "required" {
		t.Fatalf("expected user_id required failure, got %v", fields)
	}
	if fields["expiry"] != "gte" {
		t.Fatalf("expected expiry gte failure, got %v", fields)
	}
}

func TestValidateStructPassesValidPayload(t *testing.T) {
	err := ValidateStruct(issuePayload{
		UserID: "6ed1f1a2-7a93-4b92-9e2b-41f0ee1c0d3e",
		Expiry: 0,
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	ve := ValidationErrors{
		{Field: "user_id", Tag: "required"},
		{Field: "expiry", Tag: "gte", Param: "0"},
	}

	msg := ve.Error()
	if !strings.Contains(msg, "user_id failed on required") {
		t.Fatalf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "expiry failed on gte=0") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
