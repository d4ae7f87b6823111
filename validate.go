package epub

import "fmt"

// Validate runs cheap structural checks over the publication. It is not a
// conformance checker: calling it repeatedly on an unchanged Publication
// yields an equal report.
func (p *Publication) Validate() ValidationReport {
	var report ValidationReport

	if p.Metadata.Title == "" {
		report.Errors = append(report.Errors, "Title is required")
	}
	if p.Metadata.Creator == "" {
		report.Errors = append(report.Errors, "Creator/Author is required")
	}
	if len(p.chapters) == 0 {
		report.Warnings = append(report.Warnings, "No chapters added to EPUB")
	}

	for _, ch := range p.GetAllChapters() {
		if ch.ParentID == "" {
			continue
		}
		if _, ok := p.chapters[ch.ParentID]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"Chapter %q (%s) references non-existent parent %q", ch.Title, ch.ID, ch.ParentID))
		}
	}

	return report
}
