package model

import "testing"

func TestPost_HasLike(t *testing.T) {
	p := &Post{Likes: []Like{{UserID: "u2"}, {UserID: "u1"}}}

	if !p.HasLike("u1") {
		t.Fatal("HasLike(u1) = false, want true")
	}
	if p.HasLike("u3") {
		t.Fatal("HasLike(u3) = true, want false")
	}
	if (&Post{}).HasLike("u1") {
		t.Fatal("HasLike on a post with no likes = true")
	}
}

func TestPost_FindComment(t *testing.T) {
	p := &Post{Comments: []Comment{
		{ID: "c2", AuthorID: "u1", Text: "second"},
		{ID: "c1", AuthorID: "u1", Text: "first"},
	}}

	c := p.FindComment("c1")
	if c == nil || c.Text != "first" {
		t.Fatalf("FindComment(c1) = %+v, want the first comment", c)
	}
	if p.FindComment("missing") != nil {
		t.Fatal("FindComment(missing) != nil")
	}

	// The result points into the slice.
	c.Text = "edited"
	if p.Comments[1].Text != "edited" {
		t.Fatal("FindComment returned a copy")
	}
}
