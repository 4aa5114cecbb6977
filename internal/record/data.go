package record

import "time"

// Persisted page model

// Flag values attached to a PageRecord. Flagged records are still
// persisted; the assembler decides whether to include them.
const (
	FlagLowQuality = "low-quality"
	FlagParseError = "parse-error"
)

// PageRecord is the unit of persistence for one crawled page. It is
// written to the session cache immediately after extraction and is
// immutable once written. Field names are part of the on-disk format;
// do not rename without a cache migration.
type PageRecord struct {
	URL         string            `json:"url"`
	FinalURL    string            `json:"final_url"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	TextContent string            `json:"text_content"`
	Metadata    PageMetadata      `json:"metadata"`
	Images      []ImageDescriptor `json:"images"`
	Links       []string          `json:"links"`
	Timestamp   time.Time         `json:"timestamp"`
	WordCount   int               `json:"word_count"`
	ContentType string            `json:"content_type"`
	Flags       []string          `json:"flags"`
}

// PageMetadata carries document metadata lifted from <head>.
type PageMetadata struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Author      string   `json:"author"`
}

// ImageDescriptor records one <img> occurrence. LocalPath is set only
// when the image body was downloaded during extraction; a failed
// download leaves it empty and the record is still valid.
type ImageDescriptor struct {
	Src       string `json:"src"`
	LocalPath string `json:"local_path,omitempty"`
	Alt       string `json:"alt"`
	Title     string `json:"title,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// HasFlag reports whether the record carries the given flag.
func (p *PageRecord) HasFlag(flag string) bool {
	for _, f := range p.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends flag if not already present.
func (p *PageRecord) AddFlag(flag string) {
	if !p.HasFlag(flag) {
		p.Flags = append(p.Flags, flag)
	}
}
