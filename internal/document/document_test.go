package document

import (
	"errors"
	"testing"
)

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "valid playbook",
			doc:  Document{ID: "p.yaml", SourceType: SourcePlaybook, RawContent: "key: value"},
		},
		{
			name: "valid runbook",
			doc:  Document{ID: "r.md", SourceType: SourceRunbook, RawContent: "# Title"},
		},
		{
			name: "valid log",
			doc:  Document{ID: "a.log", SourceType: SourceLog, RawContent: "line"},
		},
		{
			name:    "missing id",
			doc:     Document{SourceType: SourceLog, RawContent: "line"},
			wantErr: true,
		},
		{
			name:    "empty content",
			doc:     Document{ID: "a.log", SourceType: SourceLog, RawContent: "   \n "},
			wantErr: true,
		},
		{
			name:    "unknown source type",
			doc:     Document{ID: "a.csv", SourceType: "spreadsheet", RawContent: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Validate() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestInferSourceType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     SourceType
	}{
		{name: "yaml extension", filename: "playbook.yaml", want: SourcePlaybook},
		{name: "yml extension", filename: "playbook.yml", want: SourcePlaybook},
		{name: "markdown extension", filename: "runbook.md", want: SourceRunbook},
		{name: "log extension", filename: "app.log", want: SourceLog},
		{
			name:     "txt with yaml front matter",
			filename: "doc.txt",
			content:  "---\nid: restart\n",
			want:     SourcePlaybook,
		},
		{
			name:     "txt with yaml keys",
			filename: "doc.txt",
			content:  "severity: critical\nsteps: []\n",
			want:     SourcePlaybook,
		},
		{
			name:     "txt with markdown heading",
			filename: "doc.txt",
			content:  "# Outage guide\n\nSteps follow.",
			want:     SourceRunbook,
		},
		{
			name:     "plain text defaults to log",
			filename: "doc.txt",
			content:  "2024-03-01 10:00:00 error connecting",
			want:     SourceLog,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferSourceType(tt.filename, tt.content); got != tt.want {
				t.Errorf("InferSourceType(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
