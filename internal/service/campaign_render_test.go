package service

import (
	"testing"

	"leadmap.app/server/internal/model"
)

func strPtr(s string) *string { return &s }

func TestRenderStep(t *testing.T) {
	price := int64(450000)
	lead := &model.Lead{
		OwnerName:  strPtr("Pat Doe"),
		OwnerEmail: strPtr("pat@example.com"),
		Street:     "12 Elm St",
		City:       "Austin",
		State:      "TX",
		Zip:        "78701",
		Price:      &price,
	}
	step := &model.CampaignStep{
		Subject:      "About {{.Street}} in {{.City}}",
		BodyTemplate: "Hi {{.OwnerName}}, still asking {{.Price}} for {{.Street}}?",
	}

	subject, body, err := renderStep(step, lead)
	if err != nil {
		t.Fatalf("renderStep: %v", err)
	}
	if want := "About 12 Elm St in Austin"; subject != want {
		t.Errorf("subject = %q, want %q", subject, want)
	}
	if want := "Hi Pat Doe, still asking 450000 for 12 Elm St?"; body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestRenderStepUnsetFields(t *testing.T) {
	lead := &model.Lead{Street: "12 Elm St"}
	step := &model.CampaignStep{
		Subject:      "Re: {{.Street}}",
		BodyTemplate: "Hi {{.OwnerName}}, price was {{.Price}}.",
	}

	_, body, err := renderStep(step, lead)
	if err != nil {
		t.Fatalf("renderStep: %v", err)
	}
	if want := "Hi , price was ."; body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestRenderStepUnknownField(t *testing.T) {
	// missingkey=zero renders unknown keys as empty, not an error.
	lead := &model.Lead{Street: "12 Elm St"}
	step := &model.CampaignStep{
		Subject:      "{{.NoSuchField}}",
		BodyTemplate: "body",
	}

	subject, _, err := renderStep(step, lead)
	if err != nil {
		t.Fatalf("renderStep: %v", err)
	}
	if subject != "" {
		t.Errorf("subject = %q, want empty", subject)
	}
}

func TestRenderStepBadTemplate(t *testing.T) {
	lead := &model.Lead{}
	step := &model.CampaignStep{
		Subject:      "ok",
		BodyTemplate: "{{.Unclosed",
	}

	if _, _, err := renderStep(step, lead); err == nil {
		t.Fatal("expected parse error for unclosed action")
	}
}

func TestMergeFieldsPrice(t *testing.T) {
	if got := mergeFields(&model.Lead{})["Price"]; got != "" {
		t.Errorf("Price = %q, want empty for nil price", got)
	}
	price := int64(199500)
	if got := mergeFields(&model.Lead{Price: &price})["Price"]; got != "199500" {
		t.Errorf("Price = %q, want 199500", got)
	}
}
