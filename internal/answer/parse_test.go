package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCitations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single digit", "Yes ##7$$it is.", "Yes it is."},
		{"many digits", "##123$$Supported##0$$", "Supported"},
		{"no markers", "Plain answer with ## and $$ apart", "Plain answer with ## and $$ apart"},
		{"not digits", "##a$$ stays", "##a$$ stays"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCitations(tt.in))
		})
	}
}

func TestParseCompletion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Answer
	}{
		{
			name: "answer with references",
			raw:  `{"code":0,"data":{"answer":"##1$$Yes it is.","reference":{"doc_aggs":[{"doc_name":"tender_terms.pdf","count":1},{"doc_name":"annex.docx"}]}}}`,
			want: Answer{Text: "Yes it is.", Reference: "tender_terms.pdf\nannex.docx"},
		},
		{
			name: "answer without reference",
			raw:  `{"data":{"answer":"Yes"}}`,
			want: Answer{Text: "Yes"},
		},
		{
			name: "empty reference object",
			raw:  `{"data":{"answer":"Yes","reference":{}}}`,
			want: Answer{Text: "Yes"},
		},
		{
			name: "empty doc_aggs",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":[]}}}`,
			want: Answer{Text: "Yes"},
		},
		{
			name: "missing data",
			raw:  `{"code":102,"message":"session not found"}`,
			want: Answer{},
		},
		{
			name: "data is not an object",
			raw:  `{"data":true}`,
			want: Answer{},
		},
		{
			name: "answer wrong type",
			raw:  `{"data":{"answer":42,"reference":{"doc_aggs":[{"doc_name":"a.pdf"}]}}}`,
			want: Answer{},
		},
		{
			name: "answer missing with reference",
			raw:  `{"data":{"reference":{"doc_aggs":[{"doc_name":"a.pdf"}]}}}`,
			want: Answer{},
		},
		{
			name: "answer null",
			raw:  `{"data":{"answer":null}}`,
			want: Answer{},
		},
		{
			name: "doc_aggs empty string",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":""}}}`,
			want: Answer{Text: "Yes"},
		},
		{
			name: "reference not an object",
			raw:  `{"data":{"answer":"Yes","reference":"a.pdf"}}`,
			want: Answer{},
		},
		{
			name: "doc_aggs wrong type",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":"a.pdf"}}}`,
			want: Answer{},
		},
		{
			name: "doc_aggs entry without doc_name",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":[{"doc_name":"a.pdf"},{"id":"x"}]}}}`,
			want: Answer{},
		},
		{
			name: "doc_aggs object",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":{"doc_name":"a.pdf"}}}}`,
			want: Answer{},
		},
		{
			name: "doc_aggs entry not an object",
			raw:  `{"data":{"answer":"Yes","reference":{"doc_aggs":["a.pdf"]}}}`,
			want: Answer{},
		},
		{
			name: "top level array",
			raw:  `[{"data":{"answer":"Yes"}}]`,
			want: Answer{},
		},
		{
			name: "invalid json",
			raw:  `{"data":{"answer":"Yes"`,
			want: Answer{},
		},
		{
			name: "empty body",
			raw:  ``,
			want: Answer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCompletion([]byte(tt.raw)))
		})
	}
}
