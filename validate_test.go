package epub

import "testing"

func TestValidate_RequiresTitleAndCreator(t *testing.T) {
	pub := &Publication{chapters: make(map[string]*Chapter)}
	report := pub.Validate()
	if report.IsValid() {
		t.Fatal("Validate() reports valid for empty metadata, want invalid")
	}
	if len(report.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries (title, creator)", report.Errors)
	}
}

func TestValidate_WarnsOnNoChapters(t *testing.T) {
	pub, _ := New(testMetadata(), NewOptions())
	report := pub.Validate()
	if !report.IsValid() {
		t.Fatalf("Validate() errors = %v, want none", report.Errors)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1 entry (no chapters)", report.Warnings)
	}
}

func TestValidate_OKWithChapters(t *testing.T) {
	pub, _ := New(testMetadata(), NewOptions())
	pub.AddChapter(AddChapterOptions{Title: "Chapter One"})
	report := pub.Validate()
	if !report.IsValid() {
		t.Fatalf("Validate() errors = %v, want none", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", report.Warnings)
	}
}

func TestValidate_DetectsDanglingParent(t *testing.T) {
	pub, _ := New(testMetadata(), NewOptions())
	id, _ := pub.AddChapter(AddChapterOptions{Title: "Chapter"})
	ch, _ := pub.GetChapter(id)
	ch.ParentID = "ghost-parent"

	report := pub.Validate()
	if report.IsValid() {
		t.Fatal("Validate() reports valid with a dangling parent reference")
	}
}

func TestValidate_Idempotent(t *testing.T) {
	pub, _ := New(testMetadata(), NewOptions())
	pub.AddChapter(AddChapterOptions{Title: "Chapter"})

	first := pub.Validate()
	second := pub.Validate()
	if len(first.Errors) != len(second.Errors) || len(first.Warnings) != len(second.Warnings) {
		t.Error("Validate() is not idempotent on an unchanged Publication")
	}
}
