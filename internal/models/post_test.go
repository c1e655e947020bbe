package models

import (
	"reflect"
	"testing"
)

func TestIndexCategories(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		expected   []string
	}{
		{"nil categories", nil, []string{}},
		{"mixed case", []string{"Tech", "GoLang"}, []string{"tech", "golang"}},
		{"duplicates after folding", []string{"Tech", "tech", "TECH"}, []string{"tech"}},
		{"blank entries dropped", []string{" ", "Life "}, []string{"life"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := &Post{Metadata: PostMetadata{Categories: tt.categories}}
			got := post.IndexCategories()
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("IndexCategories() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIndexCategoriesPreservesCase(t *testing.T) {
	post := &Post{Metadata: PostMetadata{Categories: []string{"Tech"}}}
	post.IndexCategories()
	if post.Metadata.Categories[0] != "Tech" {
		t.Errorf("Categories mutated to %v", post.Metadata.Categories)
	}
}

func TestWithoutText(t *testing.T) {
	post := Post{
		Metadata: PostMetadata{Detail: PostDetail{ID: "abc"}, Metrics: &PostMetrics{WordCount: 3}},
		Synopsis: "short",
		Text:     "one two three",
	}

	stripped := post.WithoutText()
	if stripped.Text != "" {
		t.Errorf("WithoutText() kept text %q", stripped.Text)
	}
	if stripped.Synopsis != "short" || stripped.Metadata.Metrics.WordCount != 3 {
		t.Errorf("WithoutText() dropped synopsis or metrics: %+v", stripped)
	}
	if post.Text != "one two three" {
		t.Error("WithoutText() modified the original post")
	}
	if stripped.ID() != "abc" {
		t.Errorf("ID() = %v, want %v", stripped.ID(), "abc")
	}
}
